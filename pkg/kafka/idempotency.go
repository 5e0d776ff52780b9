package kafka

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// IdempotencyStore remembers which event IDs were handled.
type IdempotencyStore interface {
	Contains(ctx context.Context, eventID string) (bool, error)
	Add(ctx context.Context, eventID string) error
}

// sweepEvery is how many Adds pass between full expiry sweeps.
const sweepEvery = 1024

// MemoryIdempotencyStore keeps handled IDs in memory for ttl. It is enough
// for consumers whose side effects are per-process, as the storefront's are.
type MemoryIdempotencyStore struct {
	mu      sync.Mutex
	seen    map[string]time.Time
	ttl     time.Duration
	adds    int
	nowFunc func() time.Time
}

// NewMemoryIdempotencyStore creates a store forgetting IDs after ttl.
func NewMemoryIdempotencyStore(ttl time.Duration) *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{
		seen:    make(map[string]time.Time),
		ttl:     ttl,
		nowFunc: time.Now,
	}
}

// Contains reports whether eventID was added within the last ttl.
func (s *MemoryIdempotencyStore) Contains(_ context.Context, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.seen[eventID]
	if !ok {
		return false, nil
	}
	if s.nowFunc().Sub(at) > s.ttl {
		delete(s.seen, eventID)
		return false, nil
	}
	return true, nil
}

// Add records eventID as handled now.
func (s *MemoryIdempotencyStore) Add(_ context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.nowFunc()
	s.seen[eventID] = now
	s.adds++
	if s.adds%sweepEvery == 0 {
		for id, at := range s.seen {
			if now.Sub(at) > s.ttl {
				delete(s.seen, id)
			}
		}
	}
	return nil
}

// Len returns the number of remembered IDs, expired ones included until swept.
func (s *MemoryIdempotencyStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

// IdempotentHandler skips events whose ID the store has already seen. An ID
// is recorded only after inner succeeds, so failed events are retried on
// redelivery. Envelopes without an ID and store lookup failures fall through
// to inner.
func IdempotentHandler(store IdempotencyStore, inner Handler, logger *slog.Logger) Handler {
	return func(ctx context.Context, event *Event) error {
		if event.EventID == "" {
			return inner(ctx, event)
		}

		seen, err := store.Contains(ctx, event.EventID)
		switch {
		case err != nil:
			logger.WarnContext(ctx, "idempotency lookup failed",
				slog.String("event_id", event.EventID),
				slog.String("error", err.Error()),
			)
		case seen:
			logger.DebugContext(ctx, "duplicate event skipped",
				slog.String("event_id", event.EventID),
				slog.String("event_type", event.EventType),
			)
			return ErrDuplicate
		}

		if err := inner(ctx, event); err != nil {
			return err
		}
		if err := store.Add(ctx, event.EventID); err != nil {
			logger.WarnContext(ctx, "idempotency record failed",
				slog.String("event_id", event.EventID),
				slog.String("error", err.Error()),
			)
		}
		return nil
	}
}
