package commerce

import (
	"context"
	"net/http"
	"net/url"

	"github.com/utafrali/storefront/internal/domain"
)

type wishlistResponse struct {
	Wishlist domain.Wishlist `json:"wishlist"`
}

const wishlistPath = "/store/customers/me/wishlists"

// RetrieveWishlist returns the customer's wishlist. A customer without one
// gets an error matching apperrors.ErrNotFound.
func (c *Client) RetrieveWishlist(ctx context.Context, token string) (*domain.Wishlist, error) {
	var out wishlistResponse
	err := c.call(ctx, request{
		op:     "retrieve_wishlist",
		method: http.MethodGet,
		path:   wishlistPath,
		token:  token,
		auth:   true,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out.Wishlist, nil
}

// CreateWishlist creates the customer's (single) wishlist.
func (c *Client) CreateWishlist(ctx context.Context, token string) (*domain.Wishlist, error) {
	var out wishlistResponse
	err := c.call(ctx, request{
		op:     "create_wishlist",
		method: http.MethodPost,
		path:   wishlistPath,
		token:  token,
		auth:   true,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out.Wishlist, nil
}

// AddWishlistItem adds a variant. A variant already present yields an error
// matching apperrors.ErrAlreadyExists.
func (c *Client) AddWishlistItem(ctx context.Context, token, variantID string) (*domain.Wishlist, error) {
	var out wishlistResponse
	err := c.call(ctx, request{
		op:     "add_wishlist_item",
		method: http.MethodPost,
		path:   wishlistPath + "/items",
		token:  token,
		auth:   true,
		body:   map[string]string{"variant_id": variantID},
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out.Wishlist, nil
}

// RemoveWishlistItem deletes an item by its ID.
func (c *Client) RemoveWishlistItem(ctx context.Context, token, itemID string) (*domain.Wishlist, error) {
	var out wishlistResponse
	err := c.call(ctx, request{
		op:     "remove_wishlist_item",
		method: http.MethodDelete,
		path:   wishlistPath + "/items/" + url.PathEscape(itemID),
		token:  token,
		auth:   true,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out.Wishlist, nil
}

// CreateShareToken returns an opaque token granting read-only access.
func (c *Client) CreateShareToken(ctx context.Context, token string) (string, error) {
	var out tokenResponse
	err := c.call(ctx, request{
		op:     "create_share_token",
		method: http.MethodPost,
		path:   wishlistPath + "/share",
		token:  token,
		auth:   true,
	}, &out)
	if err != nil {
		return "", err
	}
	return out.Token, nil
}

// RetrieveSharedWishlist resolves a share token. No customer token is needed.
func (c *Client) RetrieveSharedWishlist(ctx context.Context, shareToken string) (*domain.Wishlist, error) {
	var out wishlistResponse
	err := c.call(ctx, request{
		op:     "retrieve_shared_wishlist",
		method: http.MethodGet,
		path:   "/store/wishlists",
		query:  url.Values{"token": {shareToken}},
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out.Wishlist, nil
}
