// Package cart holds the shopper's cart for one browser session. Anonymous
// shoppers get a cart too; it is handed to the customer on login.
package cart

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/eventbus"
	"github.com/utafrali/storefront/internal/notify"
	"github.com/utafrali/storefront/internal/session"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// Backend is the slice of the commerce API the cart needs.
type Backend interface {
	RetrieveCart(ctx context.Context, token, cartID string) (*domain.Cart, error)
	CreateCart(ctx context.Context, token, regionID string) (*domain.Cart, error)
	AddLineItem(ctx context.Context, token, cartID, variantID string, quantity int) (*domain.Cart, error)
	UpdateLineItem(ctx context.Context, token, cartID, lineID string, quantity int) (*domain.Cart, error)
	DeleteLineItem(ctx context.Context, token, cartID, lineID string) (*domain.Cart, error)
	TransferCart(ctx context.Context, token, cartID string) (*domain.Cart, error)
}

// Snapshot is the provider state exposed to readers.
type Snapshot struct {
	Cart      *domain.Cart `json:"cart"`
	IsLoading bool         `json:"is_loading"`
	ItemCount int          `json:"item_count"`
}

// Config tunes the provider.
type Config struct {
	// RegionID is used when a cart has to be created. Empty lets the backend pick.
	RegionID string
}

// Provider owns the cart state of one browser session.
type Provider struct {
	backend  Backend
	tokens   session.TokenSource
	bus      *eventbus.Bus
	notifier notify.Notifier
	logger   *slog.Logger
	cfg      Config

	group singleflight.Group

	mu        sync.Mutex
	cartID    string
	cart      *domain.Cart
	loading   bool
	unsubs    []func()
	listeners []func(Snapshot)
	started   bool
	closed    bool
}

// NewProvider creates an empty provider.
func NewProvider(backend Backend, tokens session.TokenSource, bus *eventbus.Bus, notifier notify.Notifier, cfg Config, logger *slog.Logger) *Provider {
	if notifier == nil {
		notifier = notify.Discard
	}
	return &Provider{
		backend:  backend,
		tokens:   tokens,
		bus:      bus,
		notifier: notifier,
		logger:   logger,
		cfg:      cfg,
	}
}

// Start subscribes to auth signals and loads the cart named by SetCartID.
func (p *Provider) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started || p.closed {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.unsubs = append(p.unsubs,
		p.bus.Subscribe(eventbus.AuthLogin, func(ctx context.Context, _ eventbus.Message) {
			p.Transfer(ctx)
		}),
		p.bus.Subscribe(eventbus.AuthLogout, func(context.Context, eventbus.Message) {
			p.reset()
		}),
	)
	p.mu.Unlock()

	p.Retrieve(ctx)
}

// SetCartID adopts a cart ID remembered by the browser.
func (p *Provider) SetCartID(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cartID = id
}

// CartID returns the current cart ID, or "" when no cart exists yet.
func (p *Provider) CartID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cartID
}

// Snapshot returns the current state.
func (p *Provider) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

func (p *Provider) snapshotLocked() Snapshot {
	return Snapshot{Cart: p.cart, IsLoading: p.loading, ItemCount: p.cart.ItemCount()}
}

// OnChange registers fn to run after every state change, outside the lock.
func (p *Provider) OnChange(fn func(Snapshot)) {
	p.mu.Lock()
	p.listeners = append(p.listeners, fn)
	p.mu.Unlock()
}

// Retrieve reloads the cart. A cart the backend no longer knows is forgotten.
func (p *Provider) Retrieve(ctx context.Context) {
	cartID := p.CartID()
	if cartID == "" {
		return
	}
	_, _, _ = p.group.Do("retrieve", func() (any, error) {
		p.setLoading(true)
		c, err := p.backend.RetrieveCart(ctx, p.tokens.Token(), cartID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				p.logger.InfoContext(ctx, "cart no longer exists, forgetting it",
					slog.String("cart_id", cartID),
				)
				p.apply(cartID, nil, true)
				return nil, nil
			}
			p.logger.WarnContext(ctx, "failed to retrieve cart",
				slog.String("cart_id", cartID),
				slog.String("error", err.Error()),
			)
			p.apply(cartID, nil, false)
			return nil, nil
		}
		p.apply(cartID, c, false)
		return nil, nil
	})
}

// AddItem adds quantity of a variant, creating the cart on first use.
func (p *Provider) AddItem(ctx context.Context, variantID string, quantity int) bool {
	v, _, _ := p.group.Do("add:"+variantID, func() (any, error) {
		return p.addItem(ctx, variantID, quantity), nil
	})
	return v.(bool)
}

func (p *Provider) addItem(ctx context.Context, variantID string, quantity int) bool {
	token := p.tokens.Token()

	cartID, err := p.ensureCart(ctx, token)
	if err == nil {
		var c *domain.Cart
		c, err = p.backend.AddLineItem(ctx, token, cartID, variantID, quantity)
		if errors.Is(err, apperrors.ErrNotFound) {
			// The remembered cart is gone; start a fresh one.
			p.apply(cartID, nil, true)
			if cartID, err = p.ensureCart(ctx, token); err == nil {
				c, err = p.backend.AddLineItem(ctx, token, cartID, variantID, quantity)
			}
		}
		if err == nil {
			p.apply(cartID, c, false)
			p.publish(ctx, eventbus.CartChanged)
			p.publish(ctx, eventbus.OpenCartDropdown)
			return true
		}
	}

	p.fail(ctx, "failed to add cart item", err, notify.MsgCartAddFailed,
		slog.String("variant_id", variantID),
	)
	return false
}

func (p *Provider) ensureCart(ctx context.Context, token string) (string, error) {
	if id := p.CartID(); id != "" {
		return id, nil
	}
	c, err := p.backend.CreateCart(ctx, token, p.cfg.RegionID)
	if err != nil {
		return "", err
	}
	p.apply(c.ID, c, false)
	p.logger.InfoContext(ctx, "cart created", slog.String("cart_id", c.ID))
	return c.ID, nil
}

// UpdateItem sets a line's quantity; zero or less removes the line.
func (p *Provider) UpdateItem(ctx context.Context, lineID string, quantity int) bool {
	if quantity <= 0 {
		return p.RemoveItem(ctx, lineID)
	}
	cartID := p.CartID()
	if cartID == "" {
		return false
	}

	c, err := p.backend.UpdateLineItem(ctx, p.tokens.Token(), cartID, lineID, quantity)
	if err != nil {
		p.fail(ctx, "failed to update cart item", err, notify.MsgCartUpdateFailed,
			slog.String("line_id", lineID),
		)
		return false
	}
	p.apply(cartID, c, false)
	p.publish(ctx, eventbus.CartChanged)
	return true
}

// RemoveItem deletes a line.
func (p *Provider) RemoveItem(ctx context.Context, lineID string) bool {
	cartID := p.CartID()
	if cartID == "" {
		return false
	}

	c, err := p.backend.DeleteLineItem(ctx, p.tokens.Token(), cartID, lineID)
	if err != nil {
		p.fail(ctx, "failed to remove cart item", err, notify.MsgCartUpdateFailed,
			slog.String("line_id", lineID),
		)
		p.Retrieve(ctx)
		return false
	}
	p.apply(cartID, c, false)
	p.publish(ctx, eventbus.CartChanged)
	return true
}

// Transfer hands an anonymous cart to the customer who just logged in.
func (p *Provider) Transfer(ctx context.Context) {
	cartID, token := p.CartID(), p.tokens.Token()
	if cartID == "" || token == "" {
		return
	}

	p.mu.Lock()
	owned := p.cart != nil && p.cart.CustomerID != ""
	p.mu.Unlock()
	if owned {
		return
	}

	c, err := p.backend.TransferCart(ctx, token, cartID)
	if err != nil {
		p.logger.WarnContext(ctx, "failed to transfer cart",
			slog.String("cart_id", cartID),
			slog.String("error", err.Error()),
		)
		return
	}
	p.apply(cartID, c, false)
	p.publish(ctx, eventbus.CartChanged)
}

// Close unsubscribes from the bus.
func (p *Provider) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	unsubs := p.unsubs
	p.unsubs = nil
	p.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
}

// fail logs err and tells the user, except for expired logins which go
// through the session instead.
func (p *Provider) fail(ctx context.Context, msg string, err error, toast string, attrs ...any) {
	if errors.Is(err, apperrors.ErrUnauthorized) {
		p.publish(ctx, eventbus.AuthChanged)
		return
	}
	attrs = append(attrs, slog.String("error", err.Error()))
	p.logger.ErrorContext(ctx, msg, attrs...)
	p.notifier.Notify(ctx, notify.Error(toast))
}

func (p *Provider) setLoading(loading bool) {
	p.mu.Lock()
	p.loading = loading
	p.mu.Unlock()
}

// apply installs c for cartID. forget drops the cart ID as well.
func (p *Provider) apply(cartID string, c *domain.Cart, forget bool) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	if forget {
		if p.cartID == cartID {
			p.cartID = ""
			p.cart = nil
		}
	} else {
		if p.cartID == "" {
			p.cartID = cartID
		}
		if p.cartID == cartID {
			p.cart = c
		}
	}
	p.loading = false
	snap, listeners := p.snapshotLocked(), p.listenersLocked()
	p.mu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
}

// reset forgets the customer's cart on logout.
func (p *Provider) reset() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.cartID = ""
	p.cart = nil
	p.loading = false
	snap, listeners := p.snapshotLocked(), p.listenersLocked()
	p.mu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
}

func (p *Provider) listenersLocked() []func(Snapshot) {
	out := make([]func(Snapshot), len(p.listeners))
	copy(out, p.listeners)
	return out
}

func (p *Provider) publish(ctx context.Context, signal eventbus.Signal) {
	if err := p.bus.Publish(ctx, signal, nil); err != nil {
		p.logger.ErrorContext(ctx, "failed to publish signal",
			slog.String("signal", signal.String()),
			slog.String("error", err.Error()),
		)
	}
}
