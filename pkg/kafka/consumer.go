package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// Handler processes one decoded event.
type Handler func(ctx context.Context, event *Event) error

// ErrDuplicate is returned by IdempotentHandler for an event it skipped.
// Consumers count it and commit without treating it as a failure.
var ErrDuplicate = errors.New("duplicate event")

// Retry defaults.
const (
	defaultMaxAttempts = 3
	defaultBackoff     = 100 * time.Millisecond
)

// ConsumerConfig holds reader settings for one topic.
type ConsumerConfig struct {
	Brokers  []string
	GroupID  string
	Topic    string
	MinBytes int
	MaxBytes int

	// MaxAttempts bounds handler calls per message. Zero selects 3.
	MaxAttempts int
	// Backoff is the wait before the second attempt; it grows linearly.
	// Zero selects 100ms.
	Backoff time.Duration

	// DLQ receives messages that fail every attempt. Optional.
	DLQ *DLQProducer
}

// messageReader is the part of *kafka.Reader a Consumer uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// deadLetterer is satisfied by *DLQProducer.
type deadLetterer interface {
	Publish(ctx context.Context, msg kafka.Message, cause error, group string) error
}

// Consumer reads one topic in a consumer group. Every fetched message is
// committed once it is handled, dead-lettered or found undecodable, so a bad
// message never blocks its partition.
type Consumer struct {
	reader      messageReader
	handler     Handler
	dlq         deadLetterer
	topic       string
	group       string
	maxAttempts int
	backoff     time.Duration
	logger      *slog.Logger
	closeOnce   sync.Once
	closeErr    error
}

// NewConsumer creates a consumer. Call Start to begin reading.
func NewConsumer(cfg ConsumerConfig, handler Handler, logger *slog.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: cfg.MinBytes,
		MaxBytes: cfg.MaxBytes,
	})
	c := newConsumer(reader, cfg, handler, logger)
	if cfg.DLQ != nil {
		c.dlq = cfg.DLQ
	}
	return c
}

func newConsumer(reader messageReader, cfg ConsumerConfig, handler Handler, logger *slog.Logger) *Consumer {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = defaultBackoff
	}
	return &Consumer{
		reader:      reader,
		handler:     handler,
		topic:       cfg.Topic,
		group:       cfg.GroupID,
		maxAttempts: cfg.MaxAttempts,
		backoff:     cfg.Backoff,
		logger:      logger.With(slog.String("topic", cfg.Topic), slog.String("group", cfg.GroupID)),
	}
}

// Start reads until ctx is canceled, then closes the reader.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("kafka consumer started")
	defer c.logger.Info("kafka consumer stopped")

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return c.Close()
			}
			c.logger.Error("kafka fetch failed", slog.String("error", err.Error()))
			continue
		}
		consumerMessages.WithLabelValues(c.topic, c.group, outcomeReceived).Inc()

		if !c.process(ctx, msg) {
			return c.Close()
		}
	}
}

// process handles and commits msg. It returns false when ctx ended during a
// retry; the message then stays uncommitted for the next group member.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) bool {
	event, err := DecodeEvent(msg.Value)
	if err != nil {
		consumerMessages.WithLabelValues(c.topic, c.group, outcomeFailed).Inc()
		c.logger.Error("undecodable kafka message",
			slog.Int64("offset", msg.Offset),
			slog.String("error", err.Error()),
		)
		c.deadLetter(ctx, msg, err)
		c.commit(ctx, msg)
		return true
	}

	start := time.Now()
	finished, err := c.handle(ExtractTraceContext(ctx, msg), event)
	consumerHandleSeconds.WithLabelValues(c.topic, c.group).Observe(time.Since(start).Seconds())
	if !finished {
		return false
	}

	switch {
	case errors.Is(err, ErrDuplicate):
		consumerMessages.WithLabelValues(c.topic, c.group, outcomeDuplicate).Inc()
	case err != nil:
		consumerMessages.WithLabelValues(c.topic, c.group, outcomeFailed).Inc()
		c.logger.Error("kafka handler gave up",
			slog.String("event_type", event.EventType),
			slog.String("event_id", event.EventID),
			slog.Int("attempts", c.maxAttempts),
			slog.String("error", err.Error()),
		)
		c.deadLetter(ctx, msg, err)
	default:
		consumerMessages.WithLabelValues(c.topic, c.group, outcomeProcessed).Inc()
	}
	c.commit(ctx, msg)
	return true
}

// handle calls the handler up to maxAttempts times. finished is false when
// ctx ended while waiting to retry.
func (c *Consumer) handle(ctx context.Context, event *Event) (finished bool, err error) {
	for attempt := 1; ; attempt++ {
		err = c.handler(ctx, event)
		if err == nil || errors.Is(err, ErrDuplicate) || attempt == c.maxAttempts {
			return true, err
		}
		c.logger.WarnContext(ctx, "kafka handler failed",
			slog.String("event_type", event.EventType),
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()),
		)
		timer := time.NewTimer(time.Duration(attempt) * c.backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false, err
		case <-timer.C:
		}
	}
}

func (c *Consumer) deadLetter(ctx context.Context, msg kafka.Message, cause error) {
	if c.dlq == nil {
		return
	}
	if err := c.dlq.Publish(ctx, msg, cause, c.group); err == nil {
		consumerMessages.WithLabelValues(c.topic, c.group, outcomeDeadLettered).Inc()
	}
}

func (c *Consumer) commit(ctx context.Context, msg kafka.Message) {
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		c.logger.Error("kafka commit failed",
			slog.Int64("offset", msg.Offset),
			slog.String("error", err.Error()),
		)
	}
}

// Close releases the reader. Later calls return the first result.
func (c *Consumer) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.reader.Close()
	})
	return c.closeErr
}

// TopicPrefix is the prefix of the commerce backend's topics.
const TopicPrefix = "commerce"

// Topic names a commerce backend topic, e.g. Topic("customer", "updated").
func Topic(domain, action string) string {
	return TopicPrefix + "." + domain + "." + action
}
