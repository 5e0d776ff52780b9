// Package storefront assembles the per-browser-session state: one event bus
// shared by the session, wishlist and cart providers and the two header
// dropdowns, plus the stream that carries their changes to the browser.
package storefront

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/utafrali/storefront/internal/cart"
	"github.com/utafrali/storefront/internal/dropdown"
	"github.com/utafrali/storefront/internal/eventbus"
	"github.com/utafrali/storefront/internal/notify"
	"github.com/utafrali/storefront/internal/session"
	"github.com/utafrali/storefront/internal/wishlist"
)

// Stream event names besides the bus signal names.
const (
	StreamSession      = "session"
	StreamWishlist     = "wishlist"
	StreamCart         = "cart"
	StreamDropdown     = "dropdown"
	StreamNotification = "notification"
)

// Commerce is everything the providers need from the commerce API.
type Commerce interface {
	session.CustomerSource
	wishlist.Backend
	cart.Backend
}

// Config holds the per-session tunables.
type Config struct {
	LoginSettleDelay time.Duration
	Dropdown         dropdown.Config
	RegionID         string
	StreamBuffer     int
}

// Deps are shared by every Store.
type Deps struct {
	Commerce Commerce
	Enricher wishlist.Enricher
	Events   wishlist.EventPublisher
	Config   Config
	Logger   *slog.Logger
}

// Seed is the browser-held state a new Store starts from.
type Seed struct {
	Token  string
	CartID string
}

// StreamEvent is one message for the browser's event stream.
type StreamEvent struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Store is the state of one browser session.
type Store struct {
	ID               string
	Bus              *eventbus.Bus
	Tokens           *session.TokenHolder
	Session          *session.Provider
	Wishlist         *wishlist.Provider
	Cart             *cart.Provider
	CartDropdown     *dropdown.Dropdown
	WishlistDropdown *dropdown.Dropdown
	Notifications    *notify.Fanout

	logger    *slog.Logger
	bufSize   int
	startOnce sync.Once
	closeOnce sync.Once

	mu       sync.Mutex
	lastSeen time.Time
	nextSub  uint64
	subs     map[uint64]chan StreamEvent
	closed   bool
}

// NewStore wires the providers of one browser session. Call Start before use.
func NewStore(id string, seed Seed, deps Deps) *Store {
	logger := deps.Logger.With(slog.String("session_id", id))
	cfg := deps.Config
	if cfg.StreamBuffer <= 0 {
		cfg.StreamBuffer = 32
	}

	s := &Store{
		ID:               id,
		Bus:              eventbus.New(),
		Tokens:           &session.TokenHolder{},
		CartDropdown:     dropdown.New(dropdown.Cart, cfg.Dropdown),
		WishlistDropdown: dropdown.New(dropdown.Wishlist, cfg.Dropdown),
		Notifications:    notify.NewFanout(),
		logger:           logger,
		bufSize:          cfg.StreamBuffer,
		lastSeen:         time.Now(),
		subs:             make(map[uint64]chan StreamEvent),
	}
	s.Tokens.Set(seed.Token)

	s.Session = session.NewProvider(deps.Commerce, s.Tokens, s.Bus,
		session.Config{LoginSettleDelay: cfg.LoginSettleDelay}, logger)

	s.Wishlist = wishlist.NewProvider(wishlist.Deps{
		Backend:  deps.Commerce,
		Fetcher:  wishlist.NewBackendFetcher(deps.Commerce, logger),
		Enricher: deps.Enricher,
		Session:  s.Session,
		Tokens:   s.Tokens,
		Bus:      s.Bus,
		Notifier: s.Notifications,
		Events:   deps.Events,
	}, logger)

	s.Cart = cart.NewProvider(deps.Commerce, s.Tokens, s.Bus, s.Notifications,
		cart.Config{RegionID: cfg.RegionID}, logger)
	s.Cart.SetCartID(seed.CartID)

	s.wire()
	return s
}

func (s *Store) wire() {
	s.Bus.Subscribe(eventbus.OpenCartDropdown, func(context.Context, eventbus.Message) {
		s.CartDropdown.Open()
	})
	s.Bus.Subscribe(eventbus.OpenWishlistDropdown, func(context.Context, eventbus.Message) {
		s.WishlistDropdown.Open()
	})
	s.Bus.SubscribeAll(func(_ context.Context, msg eventbus.Message) {
		s.broadcast(StreamEvent{Event: msg.Name, Data: msg})
	})

	s.Session.OnChange(func(snap session.Snapshot) {
		s.broadcast(StreamEvent{Event: StreamSession, Data: snap})
	})
	s.Wishlist.OnChange(func(snap wishlist.Snapshot) {
		if snap.IsAuthenticated && !snap.IsLoading {
			s.WishlistDropdown.CountChanged(snap.TotalItems)
		}
		s.broadcast(StreamEvent{Event: StreamWishlist, Data: snap})
	})
	s.Cart.OnChange(func(snap cart.Snapshot) {
		if !snap.IsLoading {
			s.CartDropdown.CountChanged(snap.ItemCount)
		}
		s.broadcast(StreamEvent{Event: StreamCart, Data: snap})
	})

	onDropdown := func(state dropdown.State) {
		s.broadcast(StreamEvent{Event: StreamDropdown, Data: state})
	}
	s.CartDropdown.OnChange(onDropdown)
	s.WishlistDropdown.OnChange(onDropdown)

	s.Notifications.Listen(func(n notify.Notification) {
		s.broadcast(StreamEvent{Event: StreamNotification, Data: n})
	})
}

// Start mounts the providers. Concurrent callers wait for the first to finish.
func (s *Store) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		s.Wishlist.Start(ctx)
		s.Cart.Start(ctx)
		s.Session.Start(ctx)
	})
}

// Dropdown returns the dropdown with the given name.
func (s *Store) Dropdown(name dropdown.Name) *dropdown.Dropdown {
	if name == dropdown.Wishlist {
		return s.WishlistDropdown
	}
	return s.CartDropdown
}

// CustomerID returns the logged-in customer's ID, or "".
func (s *Store) CustomerID() string {
	if c := s.Session.Snapshot().Customer; c != nil {
		return c.ID
	}
	return ""
}

// SignIn installs a fresh token and announces the login.
func (s *Store) SignIn(ctx context.Context, token string) {
	s.Tokens.Set(token)
	s.publish(ctx, eventbus.AuthLogin)
}

// SignOut drops the token and announces the logout.
func (s *Store) SignOut(ctx context.Context) {
	s.Tokens.Clear()
	s.publish(ctx, eventbus.AuthLogout)
}

// Revalidate asks the session to re-fetch the customer now.
func (s *Store) Revalidate(ctx context.Context) {
	s.publish(ctx, eventbus.AuthChanged)
}

// ReloadWishlist re-fetches the wishlist after a change made elsewhere.
func (s *Store) ReloadWishlist(ctx context.Context) {
	s.Wishlist.Load(ctx)
}

func (s *Store) publish(ctx context.Context, signal eventbus.Signal) {
	if err := s.Bus.Publish(ctx, signal, nil); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish signal",
			slog.String("signal", signal.String()),
			slog.String("error", err.Error()),
		)
	}
}

// Subscribe returns a channel of stream events and a func that releases it.
// Slow readers lose events rather than blocking the providers.
func (s *Store) Subscribe() (<-chan StreamEvent, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan StreamEvent, s.bufSize)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	s.nextSub++
	id := s.nextSub
	s.subs[id] = ch

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
}

func (s *Store) broadcast(ev StreamEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
			s.logger.Debug("stream subscriber lagging, event dropped",
				slog.String("event", ev.Event),
			)
		}
	}
}

// Touch records activity for idle eviction.
func (s *Store) Touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

// LastSeen returns the time of the last recorded activity.
func (s *Store) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Close unmounts the providers, stops every timer and ends all streams.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		s.Session.Close()
		s.Wishlist.Close()
		s.Cart.Close()
		s.CartDropdown.Close()
		s.WishlistDropdown.Close()

		s.mu.Lock()
		s.closed = true
		for id, ch := range s.subs {
			delete(s.subs, id)
			close(ch)
		}
		s.mu.Unlock()
	})
}
