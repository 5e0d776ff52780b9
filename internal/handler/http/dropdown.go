package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/storefront/internal/dropdown"
)

// Dropdown actions reported by the storefront header.
const (
	actionHoverEnter      = "hover-enter"
	actionHoverLeave      = "hover-leave"
	actionBlur            = "blur"
	actionTriggerRendered = "trigger-rendered"
	actionTriggerHidden   = "trigger-hidden"
	actionInternalDelete  = "internal-delete"
)

// DropdownHandler forwards header interactions to the dropdown state machines.
type DropdownHandler struct {
	logger *slog.Logger
}

// NewDropdownHandler creates a new dropdown HTTP handler.
func NewDropdownHandler(logger *slog.Logger) *DropdownHandler {
	return &DropdownHandler{logger: logger}
}

// Act handles POST /api/v1/dropdowns/{name}/{action}
func (h *DropdownHandler) Act(w http.ResponseWriter, r *http.Request) {
	name, err := dropdown.ParseName(chi.URLParam(r, "name"))
	if err != nil {
		writeMessage(w, http.StatusNotFound, "NOT_FOUND", "unknown dropdown")
		return
	}
	d := storeFromContext(r.Context()).Dropdown(name)

	switch action := chi.URLParam(r, "action"); action {
	case actionHoverEnter:
		d.HoverEnter()
	case actionHoverLeave:
		d.HoverLeave()
	case actionBlur:
		d.Blur()
	case actionTriggerRendered:
		d.SetTriggerRendered(true)
	case actionTriggerHidden:
		d.SetTriggerRendered(false)
	case actionInternalDelete:
		d.MarkInternalDelete()
	default:
		h.logger.DebugContext(r.Context(), "unknown dropdown action", slog.String("action", action))
		writeMessage(w, http.StatusBadRequest, "INVALID_INPUT", "unknown dropdown action")
		return
	}

	writeData(w, http.StatusOK, d.State())
}
