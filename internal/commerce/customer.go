package commerce

import (
	"context"
	"net/http"
	"net/url"

	"github.com/utafrali/storefront/internal/domain"
)

type customerResponse struct {
	Customer domain.Customer `json:"customer"`
}

// CustomerUpdate holds the editable profile fields. Nil fields are left unchanged.
type CustomerUpdate struct {
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	Phone     *string `json:"phone,omitempty"`
}

const customerFields = "*addresses"

// RetrieveCustomer returns the customer bound to token.
func (c *Client) RetrieveCustomer(ctx context.Context, token string) (*domain.Customer, error) {
	var out customerResponse
	err := c.call(ctx, request{
		op:     "retrieve_customer",
		method: http.MethodGet,
		path:   "/store/customers/me",
		token:  token,
		auth:   true,
		query:  url.Values{"fields": {customerFields}},
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out.Customer, nil
}

// UpdateCustomer applies a profile update and returns the stored customer.
func (c *Client) UpdateCustomer(ctx context.Context, token string, upd CustomerUpdate) (*domain.Customer, error) {
	var out customerResponse
	err := c.call(ctx, request{
		op:     "update_customer",
		method: http.MethodPost,
		path:   "/store/customers/me",
		token:  token,
		auth:   true,
		body:   upd,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out.Customer, nil
}
