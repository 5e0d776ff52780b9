// Package event connects the storefront to the platform's Kafka topics: it
// publishes wishlist changes made here and reacts to customer, wishlist and
// catalog changes made elsewhere.
package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/storefront/internal/domain"
	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
	"github.com/utafrali/storefront/pkg/logger"
)

// Kafka topic constants for storefront events.
const (
	TopicWishlistUpdated = "storefront.wishlist.updated"
)

// Aggregate type constant.
const AggregateTypeWishlist = "wishlist"

// Source identifier for events originating from the storefront.
const SourceStorefront = "storefront"

// WishlistUpdatedData is the payload for a storefront.wishlist.updated event.
type WishlistUpdatedData struct {
	CustomerID string                `json:"customer_id"`
	WishlistID string                `json:"wishlist_id"`
	Action     domain.WishlistAction `json:"action"`
	VariantID  string                `json:"variant_id,omitempty"`
	VariantIDs []string              `json:"variant_ids"`
	ItemCount  int                   `json:"item_count"`
}

// Publisher is satisfied by *pkgkafka.Producer.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes storefront domain events to Kafka.
type Producer struct {
	kafka  Publisher
	logger *slog.Logger
}

// NewProducer creates a new event producer for the storefront.
func NewProducer(kafka Publisher, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishWishlistUpdated publishes a storefront.wishlist.updated event.
func (p *Producer) PublishWishlistUpdated(ctx context.Context, customerID string, wl *domain.Wishlist, action domain.WishlistAction, variantID string) error {
	data := WishlistUpdatedData{
		CustomerID: customerID,
		Action:     action,
		VariantID:  variantID,
		VariantIDs: []string{},
		ItemCount:  wl.Len(),
	}
	if wl != nil {
		data.WishlistID = wl.ID
		for _, item := range wl.Items {
			data.VariantIDs = append(data.VariantIDs, item.ProductVariantID)
		}
	}

	event, err := pkgkafka.NewEvent(TopicWishlistUpdated, customerID, AggregateTypeWishlist, SourceStorefront, data)
	if err != nil {
		return fmt.Errorf("create wishlist.updated event: %w", err)
	}
	if id := logger.CorrelationID(ctx); id != "" {
		event.WithCorrelationID(id)
	}
	if sid := logger.SessionID(ctx); sid != "" {
		event.WithMetadata("session_id", sid)
	}

	if err := p.kafka.Publish(ctx, TopicWishlistUpdated, event); err != nil {
		return fmt.Errorf("publish wishlist.updated event: %w", err)
	}

	p.logger.DebugContext(ctx, "published wishlist.updated event",
		slog.String("customer_id", customerID),
		slog.String("action", string(action)),
		slog.Int("item_count", data.ItemCount),
	)

	return nil
}
