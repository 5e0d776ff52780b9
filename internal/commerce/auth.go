package commerce

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/utafrali/storefront/internal/domain"
)

// Credentials identifies a customer for email/password authentication.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration is the profile created alongside a new account.
type Registration struct {
	Credentials
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone,omitempty"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// Login exchanges credentials for a customer bearer token.
func (c *Client) Login(ctx context.Context, creds Credentials) (string, error) {
	var out tokenResponse
	err := c.call(ctx, request{
		op:     "login",
		method: http.MethodPost,
		path:   "/auth/customer/emailpass",
		body:   creds,
	}, &out)
	if err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", fmt.Errorf("login: empty token in response")
	}
	return out.Token, nil
}

// Register creates the auth identity and the customer record, then logs in so
// the returned token carries the new customer's identity.
func (c *Client) Register(ctx context.Context, reg Registration) (string, *domain.Customer, error) {
	var identity tokenResponse
	err := c.call(ctx, request{
		op:     "register_identity",
		method: http.MethodPost,
		path:   "/auth/customer/emailpass/register",
		body:   reg.Credentials,
	}, &identity)
	if err != nil {
		return "", nil, err
	}

	var created customerResponse
	err = c.call(ctx, request{
		op:     "create_customer",
		method: http.MethodPost,
		path:   "/store/customers",
		token:  identity.Token,
		auth:   true,
		body: map[string]string{
			"email":      reg.Email,
			"first_name": reg.FirstName,
			"last_name":  reg.LastName,
			"phone":      reg.Phone,
		},
	}, &created)
	if err != nil {
		return "", nil, err
	}

	token, err := c.Login(ctx, reg.Credentials)
	if err != nil {
		return "", nil, err
	}
	return token, &created.Customer, nil
}

// Logout ends the backend session bound to token.
func (c *Client) Logout(ctx context.Context, token string) error {
	return c.call(ctx, request{
		op:     "logout",
		method: http.MethodDelete,
		path:   "/auth/session",
		token:  token,
		auth:   true,
	}, nil)
}

// RequestPasswordReset asks the backend to email a reset link. The backend
// answers the same way whether or not the email is registered.
func (c *Client) RequestPasswordReset(ctx context.Context, email string) error {
	return c.call(ctx, request{
		op:     "request_password_reset",
		method: http.MethodPost,
		path:   "/auth/customer/emailpass/reset-password",
		body:   map[string]string{"identifier": email},
	}, nil)
}

// ResetPassword sets a new password using the token from the reset email.
func (c *Client) ResetPassword(ctx context.Context, resetToken string, creds Credentials) error {
	return c.call(ctx, request{
		op:     "reset_password",
		method: http.MethodPost,
		path:   "/auth/customer/emailpass/update",
		query:  url.Values{"token": {resetToken}},
		token:  resetToken,
		auth:   true,
		body:   creds,
	}, nil)
}
