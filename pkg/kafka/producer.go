package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// messageWriter is the part of *kafka.Writer the producer uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ProducerOption adjusts the writer built by NewProducer.
type ProducerOption func(*kafka.Writer)

// WithBatchTimeout bounds how long a partial batch waits. The default of
// 10ms suits the storefront's low, latency sensitive volume.
func WithBatchTimeout(d time.Duration) ProducerOption {
	return func(w *kafka.Writer) { w.BatchTimeout = d }
}

// WithAsync makes writes fire-and-forget. Errors are then only logged.
func WithAsync() ProducerOption {
	return func(w *kafka.Writer) { w.Async = true }
}

// Producer writes envelopes keyed by aggregate id, so all events about one
// session or customer land on one partition in order.
type Producer struct {
	writer  messageWriter
	brokers []string
	logger  *slog.Logger
}

// NewProducer builds a Producer for brokers. Nothing is dialed until the
// first write.
func NewProducer(brokers []string, logger *slog.Logger, opts ...ProducerOption) *Producer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireAll,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.Async {
		w.Completion = func(msgs []kafka.Message, err error) {
			if err != nil {
				logger.Error("async kafka write failed", slog.Int("messages", len(msgs)), slog.String("error", err.Error()))
			}
		}
	}
	return &Producer{writer: w, brokers: brokers, logger: logger}
}

// Publish sends event to topic with the caller's trace context attached.
func (p *Producer) Publish(ctx context.Context, topic string, event *Event) error {
	msg, err := eventMessage(topic, event)
	if err != nil {
		return err
	}
	InjectTraceContext(ctx, &msg)

	start := time.Now()
	err = p.writer.WriteMessages(ctx, msg)
	producerWriteSeconds.WithLabelValues(topic).Observe(time.Since(start).Seconds())

	log := p.logger.With(slog.String("topic", topic), slog.String("event_type", event.EventType))
	if err != nil {
		producerMessages.WithLabelValues(topic, outcomeError).Inc()
		log.ErrorContext(ctx, "kafka publish failed", slog.String("error", err.Error()))
		return fmt.Errorf("publish %s to %s: %w", event.EventType, topic, err)
	}
	producerMessages.WithLabelValues(topic, outcomePublished).Inc()
	log.DebugContext(ctx, "kafka event published", slog.String("event_id", event.EventID))
	return nil
}

// eventMessage wraps event in a message whose headers repeat the routing
// fields, so consumers can skip events without decoding them.
func eventMessage(topic string, event *Event) (kafka.Message, error) {
	value, err := event.Encode()
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode %s event: %w", event.EventType, err)
	}
	msg := kafka.Message{Topic: topic, Key: []byte(event.AggregateID), Value: value}
	for _, h := range [...]struct{ key, value string }{
		{"event_type", event.EventType},
		{"source", event.Source},
		{"correlation_id", event.CorrelationID},
	} {
		if h.value != "" {
			msg.Headers = append(msg.Headers, kafka.Header{Key: h.key, Value: []byte(h.value)})
		}
	}
	return msg, nil
}

// Ping succeeds when any configured broker returns cluster metadata.
func (p *Producer) Ping(ctx context.Context) error {
	return PingBrokers(ctx, p.brokers)
}

// PingBrokers tries brokers in order and stops at the first that answers.
func PingBrokers(ctx context.Context, brokers []string) error {
	if len(brokers) == 0 {
		return errors.New("kafka ping: no brokers configured")
	}
	errs := make([]error, 0, len(brokers))
	for _, addr := range brokers {
		err := pingBroker(ctx, addr)
		if err == nil {
			return nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", addr, err))
	}
	return fmt.Errorf("kafka ping: %w", errors.Join(errs...))
}

func pingBroker(ctx context.Context, addr string) error {
	conn, err := kafka.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()
	_, err = conn.Brokers()
	return err
}

// Close flushes buffered messages and releases the writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}
