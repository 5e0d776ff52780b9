// Package redis caches catalog products so that wishlist enrichment does not
// hit the commerce API for every page view.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/storefront/internal/domain"
)

const keyPrefix = "storefront:product:"

// ProductRepository stores products as JSON under one key per product ID.
type ProductRepository struct {
	client redis.Cmdable
	ttl    time.Duration
	logger *slog.Logger
}

// NewProductRepository creates a Redis-backed product cache.
func NewProductRepository(client redis.Cmdable, ttl time.Duration, logger *slog.Logger) *ProductRepository {
	return &ProductRepository{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func productKey(id string) string {
	return keyPrefix + id
}

// GetMany returns the cached products among ids, keyed by product ID.
// Missing and unreadable entries are simply absent from the result.
func (r *ProductRepository) GetMany(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	if len(ids) == 0 {
		return map[string]domain.Product{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = productKey(id)
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget products: %w", err)
	}

	out := make(map[string]domain.Product, len(ids))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var p domain.Product
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			r.logger.WarnContext(ctx, "dropping unreadable cached product",
				slog.String("product_id", ids[i]),
				slog.String("error", err.Error()),
			)
			continue
		}
		out[ids[i]] = p
	}
	return out, nil
}

// SaveMany writes products with the configured TTL in one pipeline.
func (r *ProductRepository) SaveMany(ctx context.Context, products []domain.Product) error {
	if len(products) == 0 {
		return nil
	}

	pipe := r.client.Pipeline()
	for _, p := range products {
		data, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("marshal product %s: %w", p.ID, err)
		}
		pipe.Set(ctx, productKey(p.ID), data, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis save products: %w", err)
	}
	return nil
}

// Invalidate drops cached products, e.g. after a catalog change event.
func (r *ProductRepository) Invalidate(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = productKey(id)
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del products: %w", err)
	}
	return nil
}
