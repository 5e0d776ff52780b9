package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/utafrali/storefront/internal/commerce"
	"github.com/utafrali/storefront/internal/domain"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// AuthService is the part of the commerce API that handles accounts.
type AuthService interface {
	Login(ctx context.Context, creds commerce.Credentials) (string, error)
	Register(ctx context.Context, reg commerce.Registration) (string, *domain.Customer, error)
	Logout(ctx context.Context, token string) error
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, resetToken string, creds commerce.Credentials) error
	UpdateCustomer(ctx context.Context, token string, upd commerce.CustomerUpdate) (*domain.Customer, error)
}

// User-facing form messages.
const (
	msgEmailInvalid       = "Please enter a valid email address"
	msgPasswordRequired   = "Please enter your password"
	msgPasswordTooShort   = "Password must be at least 8 characters"
	msgPasswordsMismatch  = "Passwords do not match"
	msgNameRequired       = "Please enter your first and last name"
	msgLoginFailed        = "Invalid email or password"
	msgAccountExists      = "An account with this email already exists"
	msgResetSent          = "If an account exists for this email, a reset link is on its way"
	msgResetLinkInvalid   = "This reset link is invalid or has expired"
	msgResetTokenRequired = "The reset link is missing its token"
	msgLoginRequired      = "Please log in to continue"
	msgFormIncomplete     = "Please check the highlighted fields"
)

// AuthHandler handles login, registration, logout, password resets and
// profile updates.
type AuthHandler struct {
	auth    AuthService
	cookies cookieJar
	logger  *slog.Logger
}

// NewAuthHandler creates a new auth HTTP handler.
func NewAuthHandler(auth AuthService, cookies CookieConfig, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		auth:    auth,
		cookies: cookieJar{cfg: cookies, now: time.Now},
		logger:  logger,
	}
}

// --- Request DTOs ---

// LoginRequest is the JSON body of POST /api/v1/auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest is the JSON body of POST /api/v1/auth/register.
type RegisterRequest struct {
	FirstName       string `json:"first_name" validate:"required,max=100"`
	LastName        string `json:"last_name" validate:"required,max=100"`
	Email           string `json:"email" validate:"required,email"`
	Phone           string `json:"phone" validate:"omitempty,max=32"`
	Password        string `json:"password" validate:"required,min=8"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
}

// PasswordResetRequest is the JSON body of POST /api/v1/auth/password-reset.
type PasswordResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// PasswordResetConfirmRequest is the JSON body of
// POST /api/v1/auth/password-reset/confirm.
type PasswordResetConfirmRequest struct {
	Token           string `json:"token" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
}

// UpdateCustomerRequest is the JSON body of PUT /api/v1/customer.
type UpdateCustomerRequest struct {
	FirstName *string `json:"first_name" validate:"omitempty,min=1,max=100"`
	LastName  *string `json:"last_name" validate:"omitempty,min=1,max=100"`
	Phone     *string `json:"phone" validate:"omitempty,max=32"`
}

var (
	loginMessages = formMessages{
		"Email":    msgEmailInvalid,
		"Password": msgPasswordRequired,
	}
	registerMessages = formMessages{
		"FirstName":       msgNameRequired,
		"LastName":        msgNameRequired,
		"Email":           msgEmailInvalid,
		"Password":        msgPasswordTooShort,
		"ConfirmPassword": msgPasswordsMismatch,
	}
	resetConfirmMessages = formMessages{
		"Token":           msgResetTokenRequired,
		"Email":           msgEmailInvalid,
		"Password":        msgPasswordTooShort,
		"ConfirmPassword": msgPasswordsMismatch,
	}
)

// --- Handlers ---

// GetSession handles GET /api/v1/session
func (h *AuthHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, storeFromContext(r.Context()).Session.Snapshot())
}

// Login handles POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeForm(w, r, &req, loginMessages, msgFormIncomplete) {
		return
	}

	token, err := h.auth.Login(r.Context(), commerce.Credentials{Email: req.Email, Password: req.Password})
	if err != nil {
		if errors.Is(err, apperrors.ErrUnauthorized) || errors.Is(err, apperrors.ErrNotFound) {
			writeMessage(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", msgLoginFailed)
			return
		}
		writeError(w, r, err, h.logger)
		return
	}

	h.signIn(w, r, token)
}

// Register handles POST /api/v1/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeForm(w, r, &req, registerMessages, msgFormIncomplete) {
		return
	}

	token, _, err := h.auth.Register(r.Context(), commerce.Registration{
		Credentials: commerce.Credentials{Email: req.Email, Password: req.Password},
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Phone:       req.Phone,
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrAlreadyExists) {
			writeMessage(w, http.StatusConflict, "ALREADY_EXISTS", msgAccountExists)
			return
		}
		writeError(w, r, err, h.logger)
		return
	}

	h.signIn(w, r, token)
}

func (h *AuthHandler) signIn(w http.ResponseWriter, r *http.Request, token string) {
	ctx := r.Context()
	store := storeFromContext(ctx)

	store.SignIn(ctx, token)
	h.cookies.setToken(w, token)
	h.cookies.syncCart(w, r, store)

	h.logger.InfoContext(ctx, "customer signed in")
	writeData(w, http.StatusOK, store.Session.Snapshot())
}

// Logout handles POST /api/v1/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	store := storeFromContext(ctx)

	if token := store.Tokens.Token(); token != "" {
		if err := h.auth.Logout(ctx, token); err != nil {
			h.logger.WarnContext(ctx, "backend logout failed",
				slog.String("error", err.Error()),
			)
		}
	}

	store.SignOut(ctx)
	h.cookies.clear(w, TokenCookie)
	h.cookies.syncCart(w, r, store)

	writeData(w, http.StatusOK, store.Session.Snapshot())
}

// RequestPasswordReset handles POST /api/v1/auth/password-reset
func (h *AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req PasswordResetRequest
	if !decodeForm(w, r, &req, formMessages{"Email": msgEmailInvalid}, msgEmailInvalid) {
		return
	}

	err := h.auth.RequestPasswordReset(r.Context(), req.Email)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		writeError(w, r, err, h.logger)
		return
	}

	writeData(w, http.StatusAccepted, map[string]string{"message": msgResetSent})
}

// ConfirmPasswordReset handles POST /api/v1/auth/password-reset/confirm
func (h *AuthHandler) ConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req PasswordResetConfirmRequest
	if !decodeForm(w, r, &req, resetConfirmMessages, msgFormIncomplete) {
		return
	}

	err := h.auth.ResetPassword(r.Context(), req.Token, commerce.Credentials{Email: req.Email, Password: req.Password})
	if err != nil {
		if errors.Is(err, apperrors.ErrUnauthorized) || errors.Is(err, apperrors.ErrNotFound) {
			writeMessage(w, http.StatusBadRequest, "INVALID_RESET_TOKEN", msgResetLinkInvalid)
			return
		}
		writeError(w, r, err, h.logger)
		return
	}

	writeData(w, http.StatusOK, result{OK: true})
}

// UpdateCustomer handles PUT /api/v1/customer
func (h *AuthHandler) UpdateCustomer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	store := storeFromContext(ctx)

	token := store.Tokens.Token()
	if token == "" {
		writeMessage(w, http.StatusUnauthorized, "UNAUTHORIZED", msgLoginRequired)
		return
	}

	var req UpdateCustomerRequest
	if !decodeForm(w, r, &req, formMessages{"FirstName": msgNameRequired, "LastName": msgNameRequired}, msgFormIncomplete) {
		return
	}

	customer, err := h.auth.UpdateCustomer(ctx, token, commerce.CustomerUpdate{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrUnauthorized) {
			store.Revalidate(ctx)
		}
		writeError(w, r, err, h.logger)
		return
	}

	store.Revalidate(ctx)
	writeData(w, http.StatusOK, customer)
}
