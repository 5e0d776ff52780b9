package event

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
)

// Commerce backend topics the storefront listens to.
var (
	TopicCustomerUpdated = pkgkafka.Topic("customer", "updated")
	TopicCustomerDeleted = pkgkafka.Topic("customer", "deleted")
	TopicWishlistChanged = pkgkafka.Topic("wishlist", "updated")
	TopicProductUpdated  = pkgkafka.Topic("product", "updated")
)

// ConsumerGroup is the Kafka consumer group shared by storefront replicas.
const ConsumerGroup = "storefront"

// Session is the slice of a live browser session the consumer acts on.
type Session interface {
	Revalidate(ctx context.Context)
	SignOut(ctx context.Context)
	ReloadWishlist(ctx context.Context)
}

// SessionFinder returns the live sessions of a customer.
type SessionFinder func(customerID string) []Session

// ProductInvalidator drops cached catalog entries.
type ProductInvalidator interface {
	Invalidate(ctx context.Context, ids ...string) error
}

// CustomerEventData is the payload of backend customer and wishlist events.
type CustomerEventData struct {
	CustomerID string `json:"customer_id"`
}

// ProductEventData is the payload of backend product events.
type ProductEventData struct {
	ProductID string `json:"product_id"`
}

// Handler routes backend events to the affected sessions.
type Handler struct {
	sessions SessionFinder
	products ProductInvalidator
	logger   *slog.Logger
}

// NewHandler creates a Handler. products may be nil when no cache is in use.
func NewHandler(sessions SessionFinder, products ProductInvalidator, logger *slog.Logger) *Handler {
	return &Handler{sessions: sessions, products: products, logger: logger}
}

// Topics lists the topics Handle understands.
func (h *Handler) Topics() []string {
	topics := []string{TopicCustomerUpdated, TopicCustomerDeleted, TopicWishlistChanged}
	if h.products != nil {
		topics = append(topics, TopicProductUpdated)
	}
	return topics
}

// Handle processes one event. Unknown event types are ignored.
func (h *Handler) Handle(ctx context.Context, event *pkgkafka.Event) error {
	switch event.EventType {
	case TopicCustomerUpdated:
		return h.forCustomer(ctx, event, func(s Session) { s.Revalidate(ctx) })
	case TopicCustomerDeleted:
		return h.forCustomer(ctx, event, func(s Session) { s.SignOut(ctx) })
	case TopicWishlistChanged:
		return h.forCustomer(ctx, event, func(s Session) { s.ReloadWishlist(ctx) })
	case TopicProductUpdated:
		return h.productUpdated(ctx, event)
	default:
		h.logger.DebugContext(ctx, "ignoring event", slog.String("event_type", event.EventType))
		return nil
	}
}

func (h *Handler) forCustomer(ctx context.Context, event *pkgkafka.Event, apply func(Session)) error {
	var data CustomerEventData
	if err := event.DecodeData(&data); err != nil {
		return err
	}
	customerID := data.CustomerID
	if customerID == "" {
		customerID = event.AggregateID
	}
	if customerID == "" {
		h.logger.WarnContext(ctx, "event without customer id", slog.String("event_id", event.EventID))
		return nil
	}

	sessions := h.sessions(customerID)
	for _, s := range sessions {
		apply(s)
	}
	h.logger.InfoContext(ctx, "applied customer event",
		slog.String("event_type", event.EventType),
		slog.String("customer_id", customerID),
		slog.Int("sessions", len(sessions)),
	)
	return nil
}

func (h *Handler) productUpdated(ctx context.Context, event *pkgkafka.Event) error {
	if h.products == nil {
		return nil
	}
	var data ProductEventData
	if err := event.DecodeData(&data); err != nil {
		return err
	}
	id := data.ProductID
	if id == "" {
		id = event.AggregateID
	}
	if id == "" {
		return nil
	}
	if err := h.products.Invalidate(ctx, id); err != nil {
		return fmt.Errorf("invalidate product %s: %w", id, err)
	}
	return nil
}

// ConsumerConfig configures the backend event consumers.
type ConsumerConfig struct {
	Brokers        []string
	GroupID        string
	IdempotencyTTL time.Duration
	DLQ            *pkgkafka.DLQProducer // optional
}

// Consumers runs one Kafka consumer per topic of a Handler.
type Consumers struct {
	consumers []*pkgkafka.Consumer
	logger    *slog.Logger
	wg        sync.WaitGroup
}

// NewConsumers creates consumers for every topic h understands, sharing one
// idempotency store so redelivered events are applied once.
func NewConsumers(cfg ConsumerConfig, h *Handler, logger *slog.Logger) *Consumers {
	if cfg.GroupID == "" {
		cfg.GroupID = ConsumerGroup
	}
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = time.Hour
	}
	store := pkgkafka.NewMemoryIdempotencyStore(cfg.IdempotencyTTL)
	handler := pkgkafka.IdempotentHandler(store, h.Handle, logger)

	c := &Consumers{logger: logger}
	for _, topic := range h.Topics() {
		c.consumers = append(c.consumers, pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
			Brokers:  cfg.Brokers,
			GroupID:  cfg.GroupID,
			Topic:    topic,
			MinBytes: 1,
			MaxBytes: 10e6,
			DLQ:      cfg.DLQ,
		}, handler, logger))
	}
	return c
}

// Start runs every consumer in the background until ctx is canceled.
func (c *Consumers) Start(ctx context.Context) {
	for _, consumer := range c.consumers {
		c.wg.Add(1)
		go func(consumer *pkgkafka.Consumer) {
			defer c.wg.Done()
			if err := consumer.Start(ctx); err != nil {
				c.logger.Error("kafka consumer stopped", slog.String("error", err.Error()))
			}
		}(consumer)
	}
}

// Close closes every consumer and waits for them to return.
func (c *Consumers) Close() error {
	var errs []error
	for _, consumer := range c.consumers {
		if err := consumer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	c.wg.Wait()
	return errors.Join(errs...)
}
