// Package notify carries user-facing toast notifications from providers to
// whoever renders them (the SSE stream in production).
package notify

import (
	"context"
	"sync"
	"time"
)

// Level is the toast severity.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// User-facing messages.
const (
	MsgWishlistLoginRequired = "Please log in to add items to your wishlist"
	MsgWishlistAddFailed     = "Could not add item to wishlist"
	MsgWishlistRemoveFailed  = "Could not remove item from wishlist"
	MsgWishlistShareFailed   = "Could not create a share link"
	MsgCartAddFailed         = "Could not add item to cart"
	MsgCartUpdateFailed      = "Could not update cart"
)

// Notification is a single toast.
type Notification struct {
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Notifier shows notifications to the user. Implementations must not block.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, n Notification)

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, n Notification) { f(ctx, n) }

// Discard drops every notification.
var Discard Notifier = NotifierFunc(func(context.Context, Notification) {})

// Error builds an error-level notification.
func Error(message string) Notification {
	return Notification{Level: LevelError, Message: message}
}

// Warning builds a warning-level notification.
func Warning(message string) Notification {
	return Notification{Level: LevelWarning, Message: message}
}

// Fanout delivers every notification to all current listeners.
type Fanout struct {
	mu        sync.Mutex
	nextID    uint64
	listeners map[uint64]func(Notification)
	now       func() time.Time
}

// NewFanout creates a Fanout with no listeners.
func NewFanout() *Fanout {
	return &Fanout{
		listeners: make(map[uint64]func(Notification)),
		now:       time.Now,
	}
}

// Listen registers fn and returns a func that removes it.
func (f *Fanout) Listen(fn func(Notification)) (stop func()) {
	f.mu.Lock()
	f.nextID++
	id := f.nextID
	f.listeners[id] = fn
	f.mu.Unlock()

	return func() {
		f.mu.Lock()
		delete(f.listeners, id)
		f.mu.Unlock()
	}
}

// Notify stamps n and hands it to every listener.
func (f *Fanout) Notify(_ context.Context, n Notification) {
	if n.At.IsZero() {
		n.At = f.now().UTC()
	}

	f.mu.Lock()
	targets := make([]func(Notification), 0, len(f.listeners))
	for _, fn := range f.listeners {
		targets = append(targets, fn)
	}
	f.mu.Unlock()

	for _, fn := range targets {
		fn(n)
	}
}

// Recorder keeps every notification it receives. Useful in tests.
type Recorder struct {
	mu   sync.Mutex
	sent []Notification
}

// Notify records n.
func (r *Recorder) Notify(_ context.Context, n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
}

// Sent returns a copy of the recorded notifications.
func (r *Recorder) Sent() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.sent))
	copy(out, r.sent)
	return out
}
