// Package session tracks which customer, if any, is logged in for one
// browser session and keeps that answer fresh as auth signals arrive.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/eventbus"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// DefaultLoginSettleDelay gives the backend time to persist the new session
// before the customer is fetched after a login.
const DefaultLoginSettleDelay = 100 * time.Millisecond

// CustomerSource fetches the customer bound to a token.
type CustomerSource interface {
	RetrieveCustomer(ctx context.Context, token string) (*domain.Customer, error)
}

// TokenSource returns the current bearer token, or "".
type TokenSource interface {
	Token() string
}

// Snapshot is the provider state exposed to readers.
type Snapshot struct {
	Customer        *domain.Customer `json:"customer"`
	IsLoading       bool             `json:"is_loading"`
	IsAuthenticated bool             `json:"is_authenticated"`
}

// Config tunes the provider.
type Config struct {
	LoginSettleDelay time.Duration
}

// Provider owns the customer state of one browser session.
type Provider struct {
	source CustomerSource
	tokens TokenSource
	bus    *eventbus.Bus
	logger *slog.Logger
	delay  time.Duration

	mu         sync.Mutex
	customer   *domain.Customer
	loading    bool
	generation uint64
	settle     *time.Timer
	baseCtx    context.Context
	unsubs     []func()
	listeners  []func(Snapshot)
	started    bool
	closed     bool
}

// NewProvider creates a provider in the loading state.
func NewProvider(source CustomerSource, tokens TokenSource, bus *eventbus.Bus, cfg Config, logger *slog.Logger) *Provider {
	delay := cfg.LoginSettleDelay
	if delay <= 0 {
		delay = DefaultLoginSettleDelay
	}
	return &Provider{
		source:  source,
		tokens:  tokens,
		bus:     bus,
		logger:  logger,
		delay:   delay,
		loading: true,
		baseCtx: context.Background(),
	}
}

// Snapshot returns the current state.
func (p *Provider) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

func (p *Provider) snapshotLocked() Snapshot {
	return Snapshot{
		Customer:        p.customer,
		IsLoading:       p.loading,
		IsAuthenticated: p.customer != nil,
	}
}

// OnChange registers fn to run after every state change, outside the lock.
func (p *Provider) OnChange(fn func(Snapshot)) {
	p.mu.Lock()
	p.listeners = append(p.listeners, fn)
	p.mu.Unlock()
}

// Start subscribes to auth signals and performs the initial fetch.
// Calling Start more than once has no further effect.
func (p *Provider) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started || p.closed {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.baseCtx = context.WithoutCancel(ctx)
	p.unsubs = append(p.unsubs,
		p.bus.Subscribe(eventbus.AuthChanged, func(ctx context.Context, _ eventbus.Message) {
			p.Refresh(ctx)
		}),
		p.bus.Subscribe(eventbus.AuthLogin, func(context.Context, eventbus.Message) {
			p.scheduleSettledRefresh()
		}),
		p.bus.Subscribe(eventbus.AuthLogout, func(context.Context, eventbus.Message) {
			p.clear()
		}),
	)
	p.mu.Unlock()

	p.Refresh(ctx)
}

// Refresh re-fetches the customer. Every failure leaves the session logged
// out; nothing is returned to the caller.
func (p *Provider) Refresh(ctx context.Context) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	gen := p.generation
	p.mu.Unlock()

	customer := p.fetch(ctx)

	p.mu.Lock()
	if p.closed || gen != p.generation {
		// A logout landed while the fetch was in flight.
		p.loading = false
		p.mu.Unlock()
		return
	}
	p.customer = customer
	p.loading = false
	snap, listeners := p.snapshotLocked(), p.listenersLocked()
	p.mu.Unlock()

	p.notify(snap, listeners)
}

func (p *Provider) fetch(ctx context.Context) *domain.Customer {
	token := p.tokens.Token()
	if token == "" {
		return nil
	}

	customer, err := p.source.RetrieveCustomer(ctx, token)
	if err != nil {
		if errors.Is(err, apperrors.ErrUnauthorized) {
			p.logger.DebugContext(ctx, "customer token rejected")
		} else {
			p.logger.WarnContext(ctx, "failed to retrieve customer",
				slog.String("error", err.Error()),
			)
		}
		return nil
	}
	return customer
}

func (p *Provider) scheduleSettledRefresh() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	if p.settle != nil {
		p.settle.Stop()
	}
	ctx := p.baseCtx
	p.settle = time.AfterFunc(p.delay, func() {
		p.Refresh(ctx)
	})
}

// clear drops the customer without a network call.
func (p *Provider) clear() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.generation++
	if p.settle != nil {
		p.settle.Stop()
		p.settle = nil
	}
	p.customer = nil
	p.loading = false
	snap, listeners := p.snapshotLocked(), p.listenersLocked()
	p.mu.Unlock()

	p.notify(snap, listeners)
}

func (p *Provider) listenersLocked() []func(Snapshot) {
	out := make([]func(Snapshot), len(p.listeners))
	copy(out, p.listeners)
	return out
}

func (p *Provider) notify(snap Snapshot, listeners []func(Snapshot)) {
	for _, fn := range listeners {
		fn(snap)
	}
}

// Close unsubscribes from the bus and stops the pending login timer.
func (p *Provider) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	if p.settle != nil {
		p.settle.Stop()
		p.settle = nil
	}
	unsubs := p.unsubs
	p.unsubs = nil
	p.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
}
