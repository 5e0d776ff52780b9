package domain

import (
	"time"
)

// ShareTokenTTL is how long a wishlist share link stays valid. The backend
// does not report an expiry, so the storefront computes it when the token is issued.
const ShareTokenTTL = 24 * time.Hour

// Wishlist is the single wishlist owned by a customer. Items keep insertion order.
type Wishlist struct {
	ID         string         `json:"id"`
	CustomerID string         `json:"customer_id"`
	Items      []WishlistItem `json:"items"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// WishlistItem references a product variant. ProductVariant is filled in by
// enrichment and may be nil when enrichment failed.
type WishlistItem struct {
	ID               string    `json:"id"`
	WishlistID       string    `json:"wishlist_id"`
	ProductVariantID string    `json:"product_variant_id"`
	ProductVariant   *Variant  `json:"product_variant,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// FindByVariant returns the item referencing the given variant, or nil.
func (w *Wishlist) FindByVariant(variantID string) *WishlistItem {
	if w == nil {
		return nil
	}
	for i := range w.Items {
		if w.Items[i].ProductVariantID == variantID {
			return &w.Items[i]
		}
	}
	return nil
}

// Item returns the item with the given ID, or nil.
func (w *Wishlist) Item(itemID string) *WishlistItem {
	if w == nil {
		return nil
	}
	for i := range w.Items {
		if w.Items[i].ID == itemID {
			return &w.Items[i]
		}
	}
	return nil
}

// WithoutItem returns a copy of the wishlist with the given item filtered out.
func (w *Wishlist) WithoutItem(itemID string) *Wishlist {
	cp := *w
	cp.Items = make([]WishlistItem, 0, len(w.Items))
	for _, item := range w.Items {
		if item.ID != itemID {
			cp.Items = append(cp.Items, item)
		}
	}
	return &cp
}

// Len returns the number of items; a nil wishlist has none.
func (w *Wishlist) Len() int {
	if w == nil {
		return 0
	}
	return len(w.Items)
}

// ProductIDs returns the distinct product IDs referenced by enriched or
// partially enriched items, in first-seen order.
func (w *Wishlist) ProductIDs() []string {
	if w == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(w.Items))
	ids := make([]string, 0, len(w.Items))
	for _, item := range w.Items {
		if item.ProductVariant == nil || item.ProductVariant.ProductID == "" {
			continue
		}
		id := item.ProductVariant.ProductID
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

// ShareToken grants read-only access to a wishlist.
type ShareToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewShareToken stamps a backend token with the storefront-computed expiry.
func NewShareToken(token string, now time.Time) ShareToken {
	return ShareToken{Token: token, ExpiresAt: now.Add(ShareTokenTTL)}
}

// WishlistAction names a change reported in wishlist domain events.
type WishlistAction string

const (
	WishlistItemAdded   WishlistAction = "item_added"
	WishlistItemRemoved WishlistAction = "item_removed"
)
