package wishlist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/utafrali/storefront/internal/domain"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// Fetcher retrieves the customer's wishlist as stored by the backend.
type Fetcher interface {
	FetchRaw(ctx context.Context, token string) (*domain.Wishlist, error)
}

// Enricher attaches catalog data (prices, titles, stock) to wishlist items.
// It must not modify its input.
type Enricher interface {
	Enrich(ctx context.Context, wl *domain.Wishlist) (*domain.Wishlist, error)
}

// ProductSource looks products up by ID.
type ProductSource interface {
	ProductsByID(ctx context.Context, ids []string) ([]domain.Product, error)
}

// ProductCache is a read-through cache in front of a ProductSource.
type ProductCache interface {
	GetMany(ctx context.Context, ids []string) (map[string]domain.Product, error)
	SaveMany(ctx context.Context, products []domain.Product) error
}

// BackendFetcher fetches the wishlist from the commerce API, creating it the
// first time a customer has none.
type BackendFetcher struct {
	backend Backend
	logger  *slog.Logger
}

// NewBackendFetcher creates a BackendFetcher.
func NewBackendFetcher(backend Backend, logger *slog.Logger) *BackendFetcher {
	return &BackendFetcher{backend: backend, logger: logger}
}

// FetchRaw returns the stored wishlist, creating an empty one on not-found.
func (f *BackendFetcher) FetchRaw(ctx context.Context, token string) (*domain.Wishlist, error) {
	wl, err := f.backend.RetrieveWishlist(ctx, token)
	if err == nil {
		return wl, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	f.logger.DebugContext(ctx, "no wishlist yet, creating one")
	wl, err = f.backend.CreateWishlist(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("create wishlist: %w", err)
	}
	return wl, nil
}

// CatalogEnricher merges product data into wishlist items with a single
// product query per enrichment.
type CatalogEnricher struct {
	products ProductSource
	cache    ProductCache
	logger   *slog.Logger
}

// NewCatalogEnricher creates an enricher. cache may be nil.
func NewCatalogEnricher(products ProductSource, cache ProductCache, logger *slog.Logger) *CatalogEnricher {
	return &CatalogEnricher{products: products, cache: cache, logger: logger}
}

// Enrich returns a copy of wl with each item's ProductVariant replaced by the
// catalog variant (price, stock) and its parent product. Items whose product
// is missing from the catalog are returned unchanged.
func (e *CatalogEnricher) Enrich(ctx context.Context, wl *domain.Wishlist) (*domain.Wishlist, error) {
	if wl == nil {
		return nil, nil
	}
	ids := wl.ProductIDs()
	if len(ids) == 0 {
		return wl, nil
	}

	byID, err := e.lookup(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := *wl
	out.Items = make([]domain.WishlistItem, len(wl.Items))
	for i, item := range wl.Items {
		out.Items[i] = item
		if item.ProductVariant == nil {
			continue
		}
		product, ok := byID[item.ProductVariant.ProductID]
		if !ok {
			continue
		}
		variant := product.Variant(item.ProductVariantID)
		if variant == nil {
			continue
		}
		merged := *variant
		merged.ProductID = product.ID
		parent := product
		parent.Variants = nil
		merged.Product = &parent
		out.Items[i].ProductVariant = &merged
	}
	return &out, nil
}

func (e *CatalogEnricher) lookup(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	byID := make(map[string]domain.Product, len(ids))
	missing := ids

	if e.cache != nil {
		cached, err := e.cache.GetMany(ctx, ids)
		if err != nil {
			e.logger.WarnContext(ctx, "product cache read failed",
				slog.String("error", err.Error()),
			)
		} else {
			missing = missing[:0:0]
			for _, id := range ids {
				if p, ok := cached[id]; ok {
					byID[id] = p
				} else {
					missing = append(missing, id)
				}
			}
		}
	}

	if len(missing) == 0 {
		return byID, nil
	}

	products, err := e.products.ProductsByID(ctx, missing)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	for _, p := range products {
		byID[p.ID] = p
	}

	if e.cache != nil && len(products) > 0 {
		if err := e.cache.SaveMany(ctx, products); err != nil {
			e.logger.WarnContext(ctx, "product cache write failed",
				slog.String("error", err.Error()),
			)
		}
	}
	return byID, nil
}
