package http

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/utafrali/storefront/internal/storefront"
)

const defaultHeartbeat = 15 * time.Second

// EventsHandler streams a session's state changes as Server-Sent Events.
type EventsHandler struct {
	heartbeat time.Duration
	logger    *slog.Logger
}

// NewEventsHandler creates the SSE handler. heartbeat <= 0 selects 15s.
func NewEventsHandler(heartbeat time.Duration, logger *slog.Logger) *EventsHandler {
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}
	return &EventsHandler{heartbeat: heartbeat, logger: logger}
}

// Stream handles GET /api/v1/events. It opens with the current state of every
// provider, then forwards changes until the client leaves or the session
// store is closed.
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	store := storeFromContext(ctx)
	rc := http.NewResponseController(w)

	// Streams outlive the server's write timeout.
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		h.logger.DebugContext(ctx, "cannot clear write deadline", slog.String("error", err.Error()))
	}

	events, release := store.Subscribe()
	defer release()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	for _, ev := range initialEvents(store) {
		if err := writeEvent(w, ev); err != nil {
			return
		}
	}
	if err := rc.Flush(); err != nil {
		h.logger.WarnContext(ctx, "event stream cannot flush", slog.String("error", err.Error()))
		return
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := writeEvent(w, ev); err != nil {
				h.logger.DebugContext(ctx, "event stream write failed", slog.String("error", err.Error()))
				return
			}
		case <-ticker.C:
			if _, err := io.WriteString(w, ": ping\n\n"); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func initialEvents(s *storefront.Store) []storefront.StreamEvent {
	return []storefront.StreamEvent{
		{Event: storefront.StreamSession, Data: s.Session.Snapshot()},
		{Event: storefront.StreamWishlist, Data: s.Wishlist.Snapshot()},
		{Event: storefront.StreamCart, Data: s.Cart.Snapshot()},
		{Event: storefront.StreamDropdown, Data: s.CartDropdown.State()},
		{Event: storefront.StreamDropdown, Data: s.WishlistDropdown.State()},
	}
}

func writeEvent(w io.Writer, ev storefront.StreamEvent) error {
	data, err := json.Marshal(ev.Data)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", ev.Event, err)
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Event, data)
	return err
}
