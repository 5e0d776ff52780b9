package storefront

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var activeStores = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "storefront_active_sessions",
	Help: "Number of browser sessions with live state",
})

func init() {
	prometheus.MustRegister(activeStores)
}

// Factory builds a Store for a new browser session.
type Factory func(id string, seed Seed) *Store

// Registry keeps one Store per browser session and evicts idle ones.
type Registry struct {
	factory Factory
	ttl     time.Duration
	logger  *slog.Logger
	nowFunc func() time.Time // injectable clock for testing

	mu     sync.Mutex
	stores map[string]*Store

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewRegistry creates a registry and starts its cleanup loop, which runs
// every ttl and evicts stores idle for longer than ttl.
func NewRegistry(factory Factory, ttl time.Duration, logger *slog.Logger) *Registry {
	r := newRegistry(factory, ttl, logger)
	go r.cleanupLoop()
	return r
}

func newRegistry(factory Factory, ttl time.Duration, logger *slog.Logger) *Registry {
	return &Registry{
		factory: factory,
		ttl:     ttl,
		logger:  logger,
		nowFunc: time.Now,
		stores:  make(map[string]*Store),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Get returns the Store for id, creating and starting it on first use.
// seed only applies when the Store is created.
func (r *Registry) Get(ctx context.Context, id string, seed Seed) *Store {
	r.mu.Lock()
	s, ok := r.stores[id]
	if !ok {
		s = r.factory(id, seed)
		r.stores[id] = s
		activeStores.Set(float64(len(r.stores)))
		r.logger.DebugContext(ctx, "session store created", slog.String("session_id", id))
	}
	s.Touch(r.nowFunc())
	r.mu.Unlock()

	s.Start(ctx)
	return s
}

// Lookup returns an existing Store without creating one.
func (r *Registry) Lookup(id string) (*Store, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.stores[id]
	return s, ok
}

// ForCustomer returns the stores in which the customer is logged in.
func (r *Registry) ForCustomer(customerID string) []*Store {
	r.mu.Lock()
	all := make([]*Store, 0, len(r.stores))
	for _, s := range r.stores {
		all = append(all, s)
	}
	r.mu.Unlock()

	var out []*Store
	for _, s := range all {
		if s.CustomerID() == customerID {
			out = append(out, s)
		}
	}
	return out
}

// Remove closes and forgets the Store for id.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	s, ok := r.stores[id]
	delete(r.stores, id)
	activeStores.Set(float64(len(r.stores)))
	r.mu.Unlock()

	if ok {
		s.Close()
	}
}

// Len returns the number of live stores.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stores)
}

func (r *Registry) cleanupLoop() {
	defer close(r.done)
	ticker := time.NewTicker(r.ttl)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.cleanup()
		case <-r.stop:
			return
		}
	}
}

// cleanup closes every store idle for longer than the TTL.
func (r *Registry) cleanup() {
	now := r.nowFunc()

	r.mu.Lock()
	var idle []*Store
	for id, s := range r.stores {
		if now.Sub(s.LastSeen()) > r.ttl {
			idle = append(idle, s)
			delete(r.stores, id)
		}
	}
	activeStores.Set(float64(len(r.stores)))
	r.mu.Unlock()

	for _, s := range idle {
		s.Close()
	}
	if len(idle) > 0 {
		r.logger.Info("evicted idle session stores", slog.Int("count", len(idle)))
	}
}

// Close stops the cleanup loop and closes every store.
func (r *Registry) Close() {
	r.stopOnce.Do(func() {
		close(r.stop)
	})

	r.mu.Lock()
	all := r.stores
	r.stores = make(map[string]*Store)
	activeStores.Set(0)
	r.mu.Unlock()

	for _, s := range all {
		s.Close()
	}
}
