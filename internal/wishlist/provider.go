// Package wishlist holds the logged-in customer's wishlist for one browser
// session and mediates every change to it.
//
// Provider methods never return backend errors to their callers. Failures
// degrade the local state to nil, raise a toast for direct user actions, and
// are logged.
package wishlist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/eventbus"
	"github.com/utafrali/storefront/internal/notify"
	"github.com/utafrali/storefront/internal/session"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// Backend is the slice of the commerce API the wishlist needs.
type Backend interface {
	RetrieveWishlist(ctx context.Context, token string) (*domain.Wishlist, error)
	CreateWishlist(ctx context.Context, token string) (*domain.Wishlist, error)
	AddWishlistItem(ctx context.Context, token, variantID string) (*domain.Wishlist, error)
	RemoveWishlistItem(ctx context.Context, token, itemID string) (*domain.Wishlist, error)
	CreateShareToken(ctx context.Context, token string) (string, error)
	RetrieveSharedWishlist(ctx context.Context, shareToken string) (*domain.Wishlist, error)
}

// Session is the customer session the wishlist follows.
type Session interface {
	Snapshot() session.Snapshot
	OnChange(fn func(session.Snapshot))
}

// EventPublisher reports wishlist changes to other systems.
type EventPublisher interface {
	PublishWishlistUpdated(ctx context.Context, customerID string, wl *domain.Wishlist, action domain.WishlistAction, variantID string) error
}

// ErrLoginRequired is returned by Share when nobody is logged in.
var ErrLoginRequired = apperrors.Unauthorized("login required")

// Snapshot is the provider state exposed to readers.
type Snapshot struct {
	Wishlist        *domain.Wishlist `json:"wishlist"`
	IsLoading       bool             `json:"is_loading"`
	IsAuthenticated bool             `json:"is_authenticated"`
	TotalItems      int              `json:"total_items"`
}

// Deps wires a Provider.
type Deps struct {
	Backend  Backend
	Fetcher  Fetcher
	Enricher Enricher
	Session  Session
	Tokens   session.TokenSource
	Bus      *eventbus.Bus
	Notifier notify.Notifier
	Events   EventPublisher // optional
}

// Provider owns the wishlist state of one browser session.
type Provider struct {
	backend  Backend
	fetcher  Fetcher
	enricher Enricher
	session  Session
	tokens   session.TokenSource
	bus      *eventbus.Bus
	notifier notify.Notifier
	events   EventPublisher
	logger   *slog.Logger
	now      func() time.Time

	group singleflight.Group

	mu         sync.Mutex
	wishlist   *domain.Wishlist
	loading    bool
	customerID string
	generation uint64
	baseCtx    context.Context
	listeners  []func(Snapshot)
	started    bool
	closed     bool
}

// NewProvider creates an idle provider; call Start to follow the session.
func NewProvider(deps Deps, logger *slog.Logger) *Provider {
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notify.Discard
	}
	return &Provider{
		backend:  deps.Backend,
		fetcher:  deps.Fetcher,
		enricher: deps.Enricher,
		session:  deps.Session,
		tokens:   deps.Tokens,
		bus:      deps.Bus,
		notifier: notifier,
		events:   deps.Events,
		logger:   logger,
		now:      time.Now,
		baseCtx:  context.Background(),
	}
}

// Start follows the session: the wishlist loads once the session has a
// customer and clears as soon as it has none.
func (p *Provider) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started || p.closed {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.baseCtx = context.WithoutCancel(ctx)
	p.mu.Unlock()

	p.session.OnChange(p.onSession)
	p.onSession(p.session.Snapshot())
}

func (p *Provider) onSession(snap session.Snapshot) {
	if snap.IsLoading {
		return
	}
	if snap.Customer == nil {
		p.clear()
		return
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	changed := p.customerID != snap.Customer.ID
	p.customerID = snap.Customer.ID
	ctx := p.baseCtx
	p.mu.Unlock()

	if changed {
		p.Load(ctx)
	}
}

// Snapshot returns the current state.
func (p *Provider) Snapshot() Snapshot {
	authenticated := p.authenticated()

	p.mu.Lock()
	defer p.mu.Unlock()
	return Snapshot{
		Wishlist:        p.wishlist,
		IsLoading:       p.loading,
		IsAuthenticated: authenticated,
		TotalItems:      p.wishlist.Len(),
	}
}

// OnChange registers fn to run after every state change, outside the lock.
func (p *Provider) OnChange(fn func(Snapshot)) {
	p.mu.Lock()
	p.listeners = append(p.listeners, fn)
	p.mu.Unlock()
}

// TotalItems returns the number of items in the local wishlist.
func (p *Provider) TotalItems() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.wishlist.Len()
}

// IsInWishlist reports whether the local wishlist holds the variant.
// It never calls the backend.
func (p *Provider) IsInWishlist(variantID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.wishlist.FindByVariant(variantID) != nil
}

// Load replaces the local wishlist with the backend's, enriched with catalog
// data. Concurrent calls within one login share one backend round trip; a
// call from a newer login never joins one started before a logout.
func (p *Provider) Load(ctx context.Context) {
	token, ok := p.credentials()
	if !ok {
		p.clear()
		return
	}
	gen := p.currentGeneration()
	_, _, _ = p.group.Do(flightKey("load", gen, ""), func() (any, error) {
		p.load(ctx, token, gen)
		return nil, nil
	})
}

func (p *Provider) load(ctx context.Context, token string, gen uint64) {
	if !p.beginLoad(gen) {
		return
	}

	raw, err := p.fetcher.FetchRaw(ctx, token)
	if err != nil {
		p.logger.WarnContext(ctx, "failed to load wishlist",
			slog.String("error", err.Error()),
		)
		p.apply(gen, nil)
		return
	}
	p.apply(gen, p.enrich(ctx, raw))
}

// enrich falls back to the raw wishlist when catalog data is unavailable.
func (p *Provider) enrich(ctx context.Context, raw *domain.Wishlist) *domain.Wishlist {
	if p.enricher == nil || raw == nil {
		return raw
	}
	enriched, err := p.enricher.Enrich(ctx, raw)
	if err != nil {
		p.logger.WarnContext(ctx, "failed to enrich wishlist",
			slog.String("wishlist_id", raw.ID),
			slog.String("error", err.Error()),
		)
		return raw
	}
	return enriched
}

// AddItem adds a variant and reports whether the variant is now in the
// wishlist. Anonymous callers get a login toast and no backend call.
func (p *Provider) AddItem(ctx context.Context, variantID string) bool {
	token, ok := p.credentials()
	if !ok {
		p.notifier.Notify(ctx, notify.Warning(notify.MsgWishlistLoginRequired))
		return false
	}
	gen := p.currentGeneration()
	v, _, _ := p.group.Do(flightKey("add", gen, variantID), func() (any, error) {
		return p.addItem(ctx, token, variantID, gen), nil
	})
	return v.(bool)
}

func (p *Provider) addItem(ctx context.Context, token, variantID string, gen uint64) bool {
	wl, err := p.addOrCreate(ctx, token, variantID)
	switch {
	case err == nil:
		enriched := p.enrich(ctx, wl)
		if !p.apply(gen, enriched) {
			return false
		}
		p.publish(ctx, eventbus.OpenWishlistDropdown)
		p.emit(ctx, enriched, domain.WishlistItemAdded, variantID)
		return true

	case errors.Is(err, apperrors.ErrAlreadyExists):
		p.logger.DebugContext(ctx, "variant already in wishlist, resyncing",
			slog.String("variant_id", variantID),
		)
		p.Load(ctx)
		return true

	case errors.Is(err, apperrors.ErrUnauthorized):
		p.publish(ctx, eventbus.AuthChanged)
		return false

	default:
		p.logger.ErrorContext(ctx, "failed to add wishlist item",
			slog.String("variant_id", variantID),
			slog.String("error", err.Error()),
		)
		p.notifier.Notify(ctx, notify.Error(notify.MsgWishlistAddFailed))
		return false
	}
}

// addOrCreate adds the variant, creating the customer's wishlist first when
// the backend has none yet. That happens when no load has succeeded.
func (p *Provider) addOrCreate(ctx context.Context, token, variantID string) (*domain.Wishlist, error) {
	wl, err := p.backend.AddWishlistItem(ctx, token, variantID)
	if !errors.Is(err, apperrors.ErrNotFound) || p.hasWishlist() {
		return wl, err
	}

	p.logger.DebugContext(ctx, "no wishlist yet, creating one before adding",
		slog.String("variant_id", variantID),
	)
	if _, err := p.backend.CreateWishlist(ctx, token); err != nil && !errors.Is(err, apperrors.ErrAlreadyExists) {
		return nil, err
	}
	return p.backend.AddWishlistItem(ctx, token, variantID)
}

// RemoveItem removes an item by ID. On success the item is filtered out
// locally; on failure the wishlist is refetched.
func (p *Provider) RemoveItem(ctx context.Context, itemID string) bool {
	token, ok := p.credentials()
	if !ok {
		p.notifier.Notify(ctx, notify.Warning(notify.MsgWishlistLoginRequired))
		return false
	}
	gen := p.currentGeneration()
	v, _, _ := p.group.Do(flightKey("remove", gen, itemID), func() (any, error) {
		return p.removeItem(ctx, token, itemID, gen), nil
	})
	return v.(bool)
}

func (p *Provider) removeItem(ctx context.Context, token, itemID string, gen uint64) bool {
	_, err := p.backend.RemoveWishlistItem(ctx, token, itemID)
	if err == nil {
		p.mu.Lock()
		if p.closed || gen != p.generation || p.wishlist == nil {
			p.mu.Unlock()
			return true
		}
		var variantID string
		if item := p.wishlist.Item(itemID); item != nil {
			variantID = item.ProductVariantID
		}
		p.wishlist = p.wishlist.WithoutItem(itemID)
		updated := p.wishlist
		p.mu.Unlock()

		p.changed()
		p.emit(ctx, updated, domain.WishlistItemRemoved, variantID)
		return true
	}

	p.logger.ErrorContext(ctx, "failed to remove wishlist item",
		slog.String("item_id", itemID),
		slog.String("error", err.Error()),
	)
	p.Load(ctx)
	if errors.Is(err, apperrors.ErrUnauthorized) {
		p.publish(ctx, eventbus.AuthChanged)
	} else {
		p.notifier.Notify(ctx, notify.Error(notify.MsgWishlistRemoveFailed))
	}
	return false
}

// ToggleItem removes the variant if present, otherwise adds it.
func (p *Provider) ToggleItem(ctx context.Context, variantID string) bool {
	p.mu.Lock()
	item := p.wishlist.FindByVariant(variantID)
	var itemID string
	if item != nil {
		itemID = item.ID
	}
	p.mu.Unlock()

	if itemID != "" {
		return p.RemoveItem(ctx, itemID)
	}
	return p.AddItem(ctx, variantID)
}

// Share issues a read-only share token for the customer's wishlist.
func (p *Provider) Share(ctx context.Context) (domain.ShareToken, error) {
	token, ok := p.credentials()
	if !ok {
		return domain.ShareToken{}, ErrLoginRequired
	}

	shareToken, err := p.backend.CreateShareToken(ctx, token)
	if err != nil {
		if errors.Is(err, apperrors.ErrUnauthorized) {
			p.publish(ctx, eventbus.AuthChanged)
		} else {
			p.notifier.Notify(ctx, notify.Error(notify.MsgWishlistShareFailed))
		}
		return domain.ShareToken{}, err
	}
	return domain.NewShareToken(shareToken, p.now()), nil
}

// SharedWishlist resolves a share token into an enriched read-only wishlist.
// It needs no login.
func (p *Provider) SharedWishlist(ctx context.Context, shareToken string) (*domain.Wishlist, error) {
	wl, err := p.backend.RetrieveSharedWishlist(ctx, shareToken)
	if err != nil {
		return nil, err
	}
	return p.enrich(ctx, wl), nil
}

// Close detaches the provider; in-flight results are discarded.
func (p *Provider) Close() {
	p.mu.Lock()
	p.closed = true
	p.generation++
	p.mu.Unlock()
}

func (p *Provider) authenticated() bool {
	return p.session.Snapshot().Customer != nil
}

func (p *Provider) credentials() (string, bool) {
	if !p.authenticated() {
		return "", false
	}
	token := p.tokens.Token()
	return token, token != ""
}

func (p *Provider) currentGeneration() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.generation
}

// beginLoad marks the provider loading unless gen is stale.
func (p *Provider) beginLoad(gen uint64) bool {
	p.mu.Lock()
	if p.closed || gen != p.generation {
		p.mu.Unlock()
		return false
	}
	p.loading = true
	p.mu.Unlock()

	p.changed()
	return true
}

func (p *Provider) hasWishlist() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.wishlist != nil
}

// flightKey scopes in-flight sharing to one login generation.
func flightKey(op string, gen uint64, id string) string {
	return fmt.Sprintf("%s:%d:%s", op, gen, id)
}

// apply installs wl unless a logout or Close happened since gen was taken.
func (p *Provider) apply(gen uint64, wl *domain.Wishlist) bool {
	p.mu.Lock()
	if p.closed || gen != p.generation {
		p.mu.Unlock()
		return false
	}
	p.wishlist = wl
	p.loading = false
	p.mu.Unlock()

	p.changed()
	return true
}

// clear drops the wishlist synchronously and invalidates in-flight results.
func (p *Provider) clear() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	wasEmpty := p.wishlist == nil && !p.loading && p.customerID == ""
	p.generation++
	p.wishlist = nil
	p.loading = false
	p.customerID = ""
	p.mu.Unlock()

	if !wasEmpty {
		p.changed()
	}
}

func (p *Provider) changed() {
	snap := p.Snapshot()

	p.mu.Lock()
	listeners := make([]func(Snapshot), len(p.listeners))
	copy(listeners, p.listeners)
	p.mu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
}

func (p *Provider) publish(ctx context.Context, signal eventbus.Signal) {
	if err := p.bus.Publish(ctx, signal, nil); err != nil {
		p.logger.ErrorContext(ctx, "failed to publish signal",
			slog.String("signal", signal.String()),
			slog.String("error", err.Error()),
		)
	}
}

// emit publishes a domain event; failures are logged and otherwise ignored.
func (p *Provider) emit(ctx context.Context, wl *domain.Wishlist, action domain.WishlistAction, variantID string) {
	if p.events == nil {
		return
	}
	customerID := ""
	if c := p.session.Snapshot().Customer; c != nil {
		customerID = c.ID
	}
	if err := p.events.PublishWishlistUpdated(ctx, customerID, wl, action, variantID); err != nil {
		p.logger.WarnContext(ctx, "failed to publish wishlist event",
			slog.String("action", string(action)),
			slog.String("error", err.Error()),
		)
	}
}
