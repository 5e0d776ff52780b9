package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/storefront/internal/wishlist"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// WishlistHandler handles HTTP requests for the session's wishlist.
type WishlistHandler struct {
	logger *slog.Logger
}

// NewWishlistHandler creates a new wishlist HTTP handler.
func NewWishlistHandler(logger *slog.Logger) *WishlistHandler {
	return &WishlistHandler{logger: logger}
}

// WishlistItemRequest is the JSON body of the add and toggle endpoints.
type WishlistItemRequest struct {
	VariantID string `json:"variant_id" validate:"required,max=128"`
}

var wishlistItemMessages = formMessages{"VariantID": "Please choose a product variant"}

// Get handles GET /api/v1/wishlist
func (h *WishlistHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, storeFromContext(r.Context()).Wishlist.Snapshot())
}

// AddItem handles POST /api/v1/wishlist/items
func (h *WishlistHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req WishlistItemRequest
	if !decodeForm(w, r, &req, wishlistItemMessages, wishlistItemMessages["VariantID"]) {
		return
	}

	p := storeFromContext(r.Context()).Wishlist
	ok := p.AddItem(r.Context(), req.VariantID)
	writeData(w, http.StatusOK, result{OK: ok, State: p.Snapshot()})
}

// RemoveItem handles DELETE /api/v1/wishlist/items/{itemId}
func (h *WishlistHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemId")

	p := storeFromContext(r.Context()).Wishlist
	ok := p.RemoveItem(r.Context(), itemID)
	writeData(w, http.StatusOK, result{OK: ok, State: p.Snapshot()})
}

// Toggle handles POST /api/v1/wishlist/toggle
func (h *WishlistHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	var req WishlistItemRequest
	if !decodeForm(w, r, &req, wishlistItemMessages, wishlistItemMessages["VariantID"]) {
		return
	}

	p := storeFromContext(r.Context()).Wishlist
	ok := p.ToggleItem(r.Context(), req.VariantID)
	writeData(w, http.StatusOK, result{OK: ok, State: p.Snapshot()})
}

// Contains handles GET /api/v1/wishlist/contains/{variantId}. It answers from
// local state only.
func (h *WishlistHandler) Contains(w http.ResponseWriter, r *http.Request) {
	variantID := chi.URLParam(r, "variantId")
	in := storeFromContext(r.Context()).Wishlist.IsInWishlist(variantID)
	writeData(w, http.StatusOK, map[string]any{"variant_id": variantID, "in_wishlist": in})
}

// Share handles POST /api/v1/wishlist/share
func (h *WishlistHandler) Share(w http.ResponseWriter, r *http.Request) {
	token, err := storeFromContext(r.Context()).Wishlist.Share(r.Context())
	if err != nil {
		if errors.Is(err, wishlist.ErrLoginRequired) {
			writeMessage(w, http.StatusUnauthorized, "UNAUTHORIZED", msgLoginRequired)
			return
		}
		writeError(w, r, err, h.logger)
		return
	}
	writeData(w, http.StatusCreated, token)
}

// Shared handles GET /api/v1/wishlist/shared/{token}. No login is needed.
func (h *WishlistHandler) Shared(w http.ResponseWriter, r *http.Request) {
	shareToken := chi.URLParam(r, "token")

	wl, err := storeFromContext(r.Context()).Wishlist.SharedWishlist(r.Context(), shareToken)
	if err != nil {
		if errors.Is(err, apperrors.ErrUnauthorized) || errors.Is(err, apperrors.ErrGone) {
			writeMessage(w, http.StatusNotFound, "NOT_FOUND", "This wishlist link is invalid or has expired")
			return
		}
		writeError(w, r, err, h.logger)
		return
	}
	writeData(w, http.StatusOK, wl)
}
