package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// CartHandler handles HTTP requests for the session's cart.
type CartHandler struct {
	cookies cookieJar
	logger  *slog.Logger
}

// NewCartHandler creates a new cart HTTP handler.
func NewCartHandler(cookies CookieConfig, logger *slog.Logger) *CartHandler {
	return &CartHandler{
		cookies: cookieJar{cfg: cookies, now: time.Now},
		logger:  logger,
	}
}

// --- Request DTOs ---

// AddLineItemRequest is the JSON body of POST /api/v1/cart/items.
type AddLineItemRequest struct {
	VariantID string `json:"variant_id" validate:"required,max=128"`
	Quantity  int    `json:"quantity" validate:"required,gte=1,lte=100"`
}

// UpdateLineItemRequest is the JSON body of PUT /api/v1/cart/items/{lineId}.
type UpdateLineItemRequest struct {
	Quantity int `json:"quantity" validate:"gte=1,lte=100"`
}

var cartMessages = formMessages{
	"VariantID": "Please choose a product variant",
	"Quantity":  "Quantity must be between 1 and 100",
}

// --- Handlers ---

// Get handles GET /api/v1/cart
func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, storeFromContext(r.Context()).Cart.Snapshot())
}

// AddItem handles POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddLineItemRequest
	if !decodeForm(w, r, &req, cartMessages, msgFormIncomplete) {
		return
	}

	store := storeFromContext(r.Context())
	ok := store.Cart.AddItem(r.Context(), req.VariantID, req.Quantity)
	h.cookies.syncCart(w, r, store)
	writeData(w, http.StatusOK, result{OK: ok, State: store.Cart.Snapshot()})
}

// UpdateItem handles PUT /api/v1/cart/items/{lineId}
func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var req UpdateLineItemRequest
	if !decodeForm(w, r, &req, cartMessages, msgFormIncomplete) {
		return
	}

	store := storeFromContext(r.Context())
	ok := store.Cart.UpdateItem(r.Context(), chi.URLParam(r, "lineId"), req.Quantity)
	writeData(w, http.StatusOK, result{OK: ok, State: store.Cart.Snapshot()})
}

// RemoveItem handles DELETE /api/v1/cart/items/{lineId}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	store := storeFromContext(r.Context())
	ok := store.Cart.RemoveItem(r.Context(), chi.URLParam(r, "lineId"))
	writeData(w, http.StatusOK, result{OK: ok, State: store.Cart.Snapshot()})
}
