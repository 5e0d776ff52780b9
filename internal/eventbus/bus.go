// Package eventbus is the per-session publish/subscribe channel that lets the
// session, wishlist, cart and dropdown components react to each other without
// holding references to one another.
//
// The vocabulary is closed: only the Signal constants below can be published.
// Signal names are part of the browser contract (they are forwarded verbatim on
// the SSE stream) and must not change.
package eventbus

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Signal identifies a bus message type.
type Signal int

const (
	// AuthChanged asks the session to revalidate now.
	AuthChanged Signal = iota + 1
	// AuthLogin reports a successful login; the session revalidates after a settle delay.
	AuthLogin
	// AuthLogout clears the session synchronously, without a network call.
	AuthLogout
	// OpenCartDropdown makes the cart dropdown visible.
	OpenCartDropdown
	// OpenWishlistDropdown makes the wishlist dropdown visible.
	OpenWishlistDropdown
	// CartChanged reports that the cart contents changed.
	CartChanged
)

var signalNames = map[Signal]string{
	AuthChanged:          "auth-changed",
	AuthLogin:            "auth-login",
	AuthLogout:           "auth-logout",
	OpenCartDropdown:     "open-cart-dropdown",
	OpenWishlistDropdown: "open-wishlist-dropdown",
	CartChanged:          "cart-changed",
}

// Signals lists every known signal in declaration order.
func Signals() []Signal {
	return []Signal{AuthChanged, AuthLogin, AuthLogout, OpenCartDropdown, OpenWishlistDropdown, CartChanged}
}

func (s Signal) String() string {
	if name, ok := signalNames[s]; ok {
		return name
	}
	return fmt.Sprintf("signal(%d)", int(s))
}

// Valid reports whether s belongs to the vocabulary.
func (s Signal) Valid() bool {
	_, ok := signalNames[s]
	return ok
}

// ParseSignal maps a wire name back to its Signal.
func ParseSignal(name string) (Signal, error) {
	for s, n := range signalNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown signal %q", name)
}

// Message is a single published signal.
type Message struct {
	Signal  Signal    `json:"-"`
	Name    string    `json:"signal"`
	Payload any       `json:"payload,omitempty"`
	At      time.Time `json:"at"`
}

// Handler receives messages. Handlers run synchronously on the publisher's
// goroutine and must not block.
type Handler func(ctx context.Context, msg Message)

type subscription struct {
	id      uint64
	signal  Signal // zero means every signal
	handler Handler
	active  bool
}

// Bus is safe for concurrent use.
type Bus struct {
	mu     sync.Mutex
	nextID uint64
	subs   []*subscription
	now    func() time.Time
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{now: time.Now}
}

// Subscribe registers h for one signal. The returned func unsubscribes and is
// safe to call more than once.
func (b *Bus) Subscribe(signal Signal, h Handler) (unsubscribe func()) {
	return b.add(signal, h)
}

// SubscribeAll registers h for every signal.
func (b *Bus) SubscribeAll(h Handler) (unsubscribe func()) {
	return b.add(0, h)
}

func (b *Bus) add(signal Signal, h Handler) func() {
	b.mu.Lock()
	b.nextID++
	sub := &subscription{id: b.nextID, signal: signal, handler: h, active: true}
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(sub.id) })
	}
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, sub := range b.subs {
		if sub.id == id {
			sub.active = false
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

// Publish delivers a signal to its subscribers in subscription order.
// A subscriber removed while the dispatch is in progress is skipped if it has
// not run yet.
func (b *Bus) Publish(ctx context.Context, signal Signal, payload any) error {
	if !signal.Valid() {
		return fmt.Errorf("publish: unknown signal %d", int(signal))
	}

	b.mu.Lock()
	targets := make([]*subscription, 0, len(b.subs))
	for _, sub := range b.subs {
		if sub.signal == 0 || sub.signal == signal {
			targets = append(targets, sub)
		}
	}
	msg := Message{Signal: signal, Name: signal.String(), Payload: payload, At: b.now().UTC()}
	b.mu.Unlock()

	for _, sub := range targets {
		if !b.isActive(sub) {
			continue
		}
		sub.handler(ctx, msg)
	}
	return nil
}

func (b *Bus) isActive(sub *subscription) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return sub.active
}

// Len returns the number of live subscriptions.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
