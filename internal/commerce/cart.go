package commerce

import (
	"context"
	"net/http"
	"net/url"

	"github.com/utafrali/storefront/internal/domain"
)

type cartResponse struct {
	Cart domain.Cart `json:"cart"`
}

type lineDeleteResponse struct {
	Parent domain.Cart `json:"parent"`
}

// RetrieveCart returns the cart with the given ID. The token is optional:
// anonymous carts are readable without one.
func (c *Client) RetrieveCart(ctx context.Context, token, cartID string) (*domain.Cart, error) {
	var out cartResponse
	err := c.call(ctx, request{
		op:     "retrieve_cart",
		method: http.MethodGet,
		path:   "/store/carts/" + url.PathEscape(cartID),
		token:  token,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out.Cart, nil
}

// CreateCart creates an empty cart, optionally in a region.
func (c *Client) CreateCart(ctx context.Context, token, regionID string) (*domain.Cart, error) {
	body := map[string]string{}
	if regionID != "" {
		body["region_id"] = regionID
	}
	var out cartResponse
	err := c.call(ctx, request{
		op:     "create_cart",
		method: http.MethodPost,
		path:   "/store/carts",
		token:  token,
		body:   body,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out.Cart, nil
}

// AddLineItem adds quantity of a variant to the cart.
func (c *Client) AddLineItem(ctx context.Context, token, cartID, variantID string, quantity int) (*domain.Cart, error) {
	var out cartResponse
	err := c.call(ctx, request{
		op:     "add_line_item",
		method: http.MethodPost,
		path:   "/store/carts/" + url.PathEscape(cartID) + "/line-items",
		token:  token,
		body:   map[string]any{"variant_id": variantID, "quantity": quantity},
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out.Cart, nil
}

// UpdateLineItem sets the quantity of an existing line.
func (c *Client) UpdateLineItem(ctx context.Context, token, cartID, lineID string, quantity int) (*domain.Cart, error) {
	var out cartResponse
	err := c.call(ctx, request{
		op:     "update_line_item",
		method: http.MethodPost,
		path:   "/store/carts/" + url.PathEscape(cartID) + "/line-items/" + url.PathEscape(lineID),
		token:  token,
		body:   map[string]int{"quantity": quantity},
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out.Cart, nil
}

// DeleteLineItem removes a line and returns the updated cart.
func (c *Client) DeleteLineItem(ctx context.Context, token, cartID, lineID string) (*domain.Cart, error) {
	var out lineDeleteResponse
	err := c.call(ctx, request{
		op:     "delete_line_item",
		method: http.MethodDelete,
		path:   "/store/carts/" + url.PathEscape(cartID) + "/line-items/" + url.PathEscape(lineID),
		token:  token,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out.Parent, nil
}

// TransferCart assigns an anonymous cart to the customer bound to token.
func (c *Client) TransferCart(ctx context.Context, token, cartID string) (*domain.Cart, error) {
	var out cartResponse
	err := c.call(ctx, request{
		op:     "transfer_cart",
		method: http.MethodPost,
		path:   "/store/carts/" + url.PathEscape(cartID) + "/customer",
		token:  token,
		auth:   true,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out.Cart, nil
}
