package storefront

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/dropdown"
	"github.com/utafrali/storefront/internal/eventbus"
	"github.com/utafrali/storefront/internal/notify"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fakeCommerce is an in-memory commerce API with one customer ("jwt-1").
type fakeCommerce struct {
	mu       sync.Mutex
	wishlist *domain.Wishlist
	carts    map[string]*domain.Cart
	seq      int
}

func newFakeCommerce() *fakeCommerce {
	return &fakeCommerce{carts: make(map[string]*domain.Cart)}
}

func (f *fakeCommerce) RetrieveCustomer(_ context.Context, token string) (*domain.Customer, error) {
	if token != "jwt-1" {
		return nil, apperrors.Unauthorized("commerce: Unauthorized")
	}
	return &domain.Customer{ID: "cus_1", Email: "ada@example.com"}, nil
}

func (f *fakeCommerce) RetrieveWishlist(context.Context, string) (*domain.Wishlist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.wishlist == nil {
		return nil, apperrors.NotFound("commerce", "wishlist")
	}
	cp := *f.wishlist
	cp.Items = append([]domain.WishlistItem(nil), f.wishlist.Items...)
	return &cp, nil
}

func (f *fakeCommerce) CreateWishlist(context.Context, string) (*domain.Wishlist, error) {
	f.mu.Lock()
	f.wishlist = &domain.Wishlist{ID: "wl_1", CustomerID: "cus_1"}
	f.mu.Unlock()
	return f.RetrieveWishlist(context.Background(), "")
}

func (f *fakeCommerce) AddWishlistItem(_ context.Context, _ string, variantID string) (*domain.Wishlist, error) {
	f.mu.Lock()
	if f.wishlist == nil {
		f.mu.Unlock()
		return nil, apperrors.NotFound("commerce", "wishlist")
	}
	f.seq++
	f.wishlist.Items = append(f.wishlist.Items, domain.WishlistItem{ID: fmt.Sprintf("item_%d", f.seq), ProductVariantID: variantID})
	f.mu.Unlock()
	return f.RetrieveWishlist(context.Background(), "")
}

func (f *fakeCommerce) RemoveWishlistItem(_ context.Context, _ string, itemID string) (*domain.Wishlist, error) {
	f.mu.Lock()
	f.wishlist = f.wishlist.WithoutItem(itemID)
	f.mu.Unlock()
	return f.RetrieveWishlist(context.Background(), "")
}

func (f *fakeCommerce) CreateShareToken(context.Context, string) (string, error) {
	return "share-1", nil
}

func (f *fakeCommerce) RetrieveSharedWishlist(ctx context.Context, _ string) (*domain.Wishlist, error) {
	return f.RetrieveWishlist(ctx, "")
}

func (f *fakeCommerce) RetrieveCart(_ context.Context, _, cartID string) (*domain.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.carts[cartID]
	if !ok {
		return nil, apperrors.NotFound("commerce", "cart")
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCommerce) CreateCart(context.Context, string, string) (*domain.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	c := &domain.Cart{ID: fmt.Sprintf("cart_%d", f.seq)}
	f.carts[c.ID] = c
	cp := *c
	return &cp, nil
}

func (f *fakeCommerce) AddLineItem(_ context.Context, _, cartID, variantID string, quantity int) (*domain.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.carts[cartID]
	f.seq++
	c.Items = append(c.Items, domain.LineItem{ID: fmt.Sprintf("li_%d", f.seq), VariantID: variantID, Quantity: quantity})
	cp := *c
	return &cp, nil
}

func (f *fakeCommerce) UpdateLineItem(_ context.Context, _, cartID, lineID string, quantity int) (*domain.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.carts[cartID]
	if i := c.FindLineIndex(lineID); i >= 0 {
		c.Items[i].Quantity = quantity
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCommerce) DeleteLineItem(_ context.Context, _, cartID, lineID string) (*domain.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.carts[cartID]
	if i := c.FindLineIndex(lineID); i >= 0 {
		c.Items = append(c.Items[:i], c.Items[i+1:]...)
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCommerce) TransferCart(_ context.Context, _, cartID string) (*domain.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.carts[cartID]
	c.CustomerID = "cus_1"
	cp := *c
	return &cp, nil
}

func testDeps(commerce *fakeCommerce) Deps {
	return Deps{
		Commerce: commerce,
		Config: Config{
			LoginSettleDelay: 10 * time.Millisecond,
			Dropdown:         dropdown.Config{AutoClose: time.Second, HoverGrace: 50 * time.Millisecond},
		},
		Logger: newTestLogger(),
	}
}

func newTestStore(t *testing.T, seed Seed) (*Store, *fakeCommerce) {
	t.Helper()
	commerce := newFakeCommerce()
	s := NewStore("sid-1", seed, testDeps(commerce))
	t.Cleanup(s.Close)
	return s, commerce
}

// drain collects stream event names until the channel is idle.
func drain(ch <-chan StreamEvent) []string {
	var names []string
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return names
			}
			names = append(names, ev.Event)
		case <-time.After(20 * time.Millisecond):
			return names
		}
	}
}

// ============================================================================
// Store
// ============================================================================

func TestStore_StartLoadsCustomerAndWishlist(t *testing.T) {
	s, _ := newTestStore(t, Seed{Token: "jwt-1"})
	events, stop := s.Subscribe()
	defer stop()

	s.Start(context.Background())

	assert.Equal(t, "cus_1", s.CustomerID())
	wl := s.Wishlist.Snapshot()
	require.NotNil(t, wl.Wishlist)
	assert.True(t, wl.IsAuthenticated)

	names := drain(events)
	assert.Contains(t, names, StreamSession)
	assert.Contains(t, names, StreamWishlist)
}

func TestStore_AnonymousStart(t *testing.T) {
	s, _ := newTestStore(t, Seed{})
	s.Start(context.Background())

	assert.Empty(t, s.CustomerID())
	assert.Nil(t, s.Wishlist.Snapshot().Wishlist)
	assert.False(t, s.Session.Snapshot().IsLoading)
}

func TestStore_WishlistAddOpensDropdown(t *testing.T) {
	s, _ := newTestStore(t, Seed{Token: "jwt-1"})
	s.Start(context.Background())
	s.WishlistDropdown.SetTriggerRendered(true)

	require.True(t, s.Wishlist.AddItem(context.Background(), "variant_123"))

	assert.True(t, s.WishlistDropdown.State().Open)
	assert.Equal(t, 1, s.WishlistDropdown.State().Count)
}

func TestStore_CartAddOpensCartDropdown(t *testing.T) {
	s, _ := newTestStore(t, Seed{})
	s.Start(context.Background())
	s.CartDropdown.SetTriggerRendered(true)

	require.True(t, s.Cart.AddItem(context.Background(), "var_1", 2))

	state := s.CartDropdown.State()
	assert.True(t, state.Open)
	assert.Equal(t, 2, state.Count)
	assert.NotEmpty(t, s.Cart.CartID())
}

func TestStore_SignOutClearsSynchronously(t *testing.T) {
	s, _ := newTestStore(t, Seed{Token: "jwt-1"})
	s.Start(context.Background())
	require.NotEmpty(t, s.CustomerID())

	s.SignOut(context.Background())

	assert.Empty(t, s.Tokens.Token())
	assert.Empty(t, s.CustomerID())
	assert.Nil(t, s.Wishlist.Snapshot().Wishlist)
	assert.Nil(t, s.Cart.Snapshot().Cart)
}

func TestStore_SignInTransfersCartAndLoadsCustomer(t *testing.T) {
	s, _ := newTestStore(t, Seed{})
	s.Start(context.Background())
	require.True(t, s.Cart.AddItem(context.Background(), "var_1", 1))

	s.SignIn(context.Background(), "jwt-1")

	assert.Equal(t, "cus_1", s.Cart.Snapshot().Cart.CustomerID)
	assert.Eventually(t, func() bool { return s.CustomerID() == "cus_1" }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return s.Wishlist.Snapshot().Wishlist != nil }, time.Second, 5*time.Millisecond)
}

func TestStore_NotificationsReachStream(t *testing.T) {
	s, _ := newTestStore(t, Seed{})
	s.Start(context.Background())
	events, stop := s.Subscribe()
	defer stop()

	assert.False(t, s.Wishlist.AddItem(context.Background(), "variant_123"))

	select {
	case ev := <-events:
		assert.Equal(t, StreamNotification, ev.Event)
		n, ok := ev.Data.(notify.Notification)
		require.True(t, ok)
		assert.Equal(t, notify.MsgWishlistLoginRequired, n.Message)
	case <-time.After(time.Second):
		t.Fatal("no notification on stream")
	}
}

func TestStore_BusSignalsReachStream(t *testing.T) {
	s, _ := newTestStore(t, Seed{})
	s.Start(context.Background())
	events, stop := s.Subscribe()
	defer stop()

	s.Revalidate(context.Background())

	assert.Contains(t, drain(events), eventbus.AuthChanged.String())
}

func TestStore_CloseEndsStreams(t *testing.T) {
	s, _ := newTestStore(t, Seed{})
	events, _ := s.Subscribe()

	s.Close()

	_, ok := <-events
	assert.False(t, ok)

	late, _ := s.Subscribe()
	_, ok = <-late
	assert.False(t, ok)
}

func TestStore_SlowSubscriberDoesNotBlock(t *testing.T) {
	commerce := newFakeCommerce()
	deps := testDeps(commerce)
	deps.Config.StreamBuffer = 1
	s := NewStore("sid-slow", Seed{}, deps)
	defer s.Close()
	_, stop := s.Subscribe()
	defer stop()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			s.Revalidate(context.Background())
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publishing blocked on a slow subscriber")
	}
}

func TestStore_Dropdown(t *testing.T) {
	s, _ := newTestStore(t, Seed{})
	assert.Same(t, s.CartDropdown, s.Dropdown(dropdown.Cart))
	assert.Same(t, s.WishlistDropdown, s.Dropdown(dropdown.Wishlist))
}
