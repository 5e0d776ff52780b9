package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
)

// DLQTopicPrefix namespaces the storefront's dead-letter topics.
const DLQTopicPrefix = "storefront.dlq"

// DLQProducer parks messages that consumers gave up on, unchanged, so they
// can be inspected and replayed.
type DLQProducer struct {
	writer *kafka.Writer
	logger *slog.Logger
}

// NewDLQProducer creates a DLQProducer writing synchronously one message at a time.
func NewDLQProducer(brokers []string, logger *slog.Logger) *DLQProducer {
	return &DLQProducer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Balancer:     &kafka.Hash{},
			BatchSize:    1,
			BatchTimeout: 100 * time.Millisecond,
			RequiredAcks: kafka.RequireAll,
		},
		logger: logger,
	}
}

// DLQTopic names the dead-letter topic for a source topic.
func DLQTopic(topic string) string {
	return DLQTopicPrefix + "." + topic
}

// deadLetter copies msg onto its dead-letter topic. The original headers are
// kept and the failure is described in dlq.* headers.
func deadLetter(msg kafka.Message, cause error, group string) kafka.Message {
	headers := make([]kafka.Header, 0, len(msg.Headers)+5)
	headers = append(headers, msg.Headers...)
	headers = append(headers,
		kafka.Header{Key: "dlq.original_topic", Value: []byte(msg.Topic)},
		kafka.Header{Key: "dlq.original_partition", Value: []byte(strconv.Itoa(msg.Partition))},
		kafka.Header{Key: "dlq.original_offset", Value: []byte(strconv.FormatInt(msg.Offset, 10))},
		kafka.Header{Key: "dlq.consumer_group", Value: []byte(group)},
	)
	if cause != nil {
		headers = append(headers, kafka.Header{Key: "dlq.error", Value: []byte(cause.Error())})
	}
	return kafka.Message{
		Topic:   DLQTopic(msg.Topic),
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: headers,
	}
}

// Publish dead-letters msg after it failed in group with cause.
func (d *DLQProducer) Publish(ctx context.Context, msg kafka.Message, cause error, group string) error {
	out := deadLetter(msg, cause, group)
	attrs := []any{
		slog.String("dlq_topic", out.Topic),
		slog.Int("partition", msg.Partition),
		slog.Int64("offset", msg.Offset),
		slog.String("group", group),
	}

	if err := d.writer.WriteMessages(ctx, out); err != nil {
		d.logger.ErrorContext(ctx, "dead-letter publish failed", append(attrs, slog.String("error", err.Error()))...)
		return fmt.Errorf("publish to %s: %w", out.Topic, err)
	}
	d.logger.WarnContext(ctx, "message dead-lettered", attrs...)
	return nil
}

// Close flushes and releases the writer.
func (d *DLQProducer) Close() error {
	return d.writer.Close()
}
