package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/fjod/go_storefront/internal/auth"
	"github.com/fjod/go_storefront/internal/document"
	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/handoff"
	"github.com/fjod/go_storefront/internal/kvstore"
	r "github.com/fjod/go_storefront/internal/repository"
	"github.com/fjod/go_storefront/internal/service"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	testSession  = "session-1"
	testPassword = "s3cret"
)

type CatalogMock struct {
	mu       sync.Mutex
	products []*domain.Product
	company  *domain.CompanyInfo
	listErr  error
}

func (m *CatalogMock) ListProducts(context.Context) ([]*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.products, m.listErr
}

func (m *CatalogMock) SaveProduct(_ context.Context, p *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products = append(m.products, p)
	return nil
}

func (m *CatalogMock) DeleteProduct(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, p := range m.products {
		if p.ID == id {
			m.products = append(m.products[:i], m.products[i+1:]...)
			return nil
		}
	}
	return r.ErrProductNotFound
}

func (m *CatalogMock) GetCompanyInfo(context.Context) (*domain.CompanyInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.company == nil {
		return nil, r.ErrCompanyInfoNotFound
	}
	return m.company, nil
}

func (m *CatalogMock) UpdateCompanyInfo(_ context.Context, info *domain.CompanyInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.company = info
	return nil
}

type OrdersMock struct {
	mu        sync.Mutex
	orders    []*domain.Order
	createErr error
}

func (m *OrdersMock) CreateOrder(_ context.Context, o *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.orders = append(m.orders, o)
	return nil
}

func (m *OrdersMock) ListOrders(context.Context) ([]*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Order, len(m.orders))
	for i, o := range m.orders {
		c := *o
		out[i] = &c
	}
	return out, nil
}

func (m *OrdersMock) UpdateOrderStatus(_ context.Context, id uuid.UUID, from, to domain.OrderStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.ID == id {
			if o.Status != from {
				return r.ErrStatusConflict
			}
			o.Status = to
			return nil
		}
	}
	return r.ErrOrderNotFound
}

func (m *OrdersMock) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

type StockMock struct{}

func (StockMock) DecreaseStock(context.Context, int64, string, int) error { return nil }

type HandoffMock struct{}

func (HandoffMock) Open(context.Context, handoff.Request) error { return nil }

// failingPreviews cannot store anything.
type failingPreviews struct{}

func (failingPreviews) Put(context.Context, *document.Document) (string, error) {
	return "", errors.New("preview store unavailable")
}

func (failingPreviews) Get(context.Context, string) (*document.Document, error) {
	return nil, document.ErrPreviewNotFound
}

// unreadableBackend stores writes but fails every read while broken is set.
type unreadableBackend struct {
	*kvstore.MemoryBackend
	mu     sync.Mutex
	broken bool
}

func (b *unreadableBackend) Get(ctx context.Context, key string) ([]byte, error) {
	b.mu.Lock()
	broken := b.broken
	b.mu.Unlock()
	if broken {
		return nil, errors.New("i/o timeout")
	}
	return b.MemoryBackend.Get(ctx, key)
}

func (b *unreadableBackend) setBroken(v bool) {
	b.mu.Lock()
	b.broken = v
	b.mu.Unlock()
}

type testEnv struct {
	handler  http.Handler
	catalog  *CatalogMock
	orders   *OrdersMock
	shop     *service.ShopService
	carts    *service.CartService
	previews PreviewKeeper
	kv       *unreadableBackend
}

type envOption func(*testEnv)

func withPreviews(p PreviewKeeper) envOption {
	return func(e *testEnv) { e.previews = p }
}

func withCatalogError(err error) envOption {
	return func(e *testEnv) { e.catalog.listErr = err }
}

func withOrderCreateError(err error) envOption {
	return func(e *testEnv) { e.orders.createErr = err }
}

func withOrders(orders ...*domain.Order) envOption {
	return func(e *testEnv) { e.orders.orders = orders }
}

func testProducts() []*domain.Product {
	return []*domain.Product{
		{
			ID:          "p1",
			Name:        "Camisa",
			Description: "Algodón",
			Variants: []domain.ProductVariant{
				{ID: "v1", ProductID: "p1", Name: "M", Price: decimal.RequireFromString("10.50"), Stock: 5},
				{ID: "v2", ProductID: "p1", Name: "L", Price: decimal.RequireFromString("12.00"), Stock: 5},
			},
		},
		{
			ID:   "p2",
			Name: "Gorra",
			Variants: []domain.ProductVariant{
				{ID: "v3", ProductID: "p2", Name: "Única", Price: decimal.NewFromInt(5), Stock: 2},
			},
		},
	}
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	log := zap.NewNop()

	mem := kvstore.NewMemoryBackend()
	t.Cleanup(mem.Close)
	kv := &unreadableBackend{MemoryBackend: mem}
	store := kvstore.New(kv)

	env := &testEnv{
		catalog: &CatalogMock{
			products: testProducts(),
			company:  &domain.CompanyInfo{Name: "Tienda Sol", Address: "Av. Principal 1", Phone: "+58 412-555-0101"},
		},
		orders:   &OrdersMock{},
		previews: document.NewPreviewStore(store, time.Minute),
		kv:       kv,
	}
	for _, o := range opts {
		o(env)
	}

	env.shop = service.NewShopService(env.catalog, env.orders, log)
	_ = env.shop.Refresh(context.Background())
	env.carts = service.NewCartService(store, log)

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)
	sessions := auth.NewSessions(store, "admin", string(hash), time.Hour, log)

	timeout := 5 * time.Second
	hs := Handlers{
		Cart:   NewCartHandler(env.carts, env.shop, timeout, log),
		Orders: NewOrdersHandler(
			env.carts,
			env.shop,
			service.NewSnapshotStore(store, time.Minute),
			service.NewCheckoutService(env.orders, HandoffMock{}, "https://wa.me", log),
			document.NewRenderer(log),
			env.previews,
			timeout,
			log,
		),
		Catalog:     NewCatalogHandler(env.shop),
		Admin:       NewAdminHandler(env.shop, service.NewConfirmationService(env.shop, StockMock{}, env.orders, log), timeout),
		Auth:        NewAuthHandler(sessions, timeout),
		Preferences: NewPreferencesHandler(service.NewPreferencesService(store, time.Hour), timeout),
	}
	env.handler = NewRouter(RouterConfig{
		RequestTimeout: timeout,
		MaxBodyBytes:   1 << 20,
		ServiceName:    "storefront-test",
	}, hs, env.shop, sessions, log)
	return env
}

// do sends a request as testSession. A nil body sends no body.
func (e *testEnv) do(t *testing.T, method, path string, body any, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SessionHeader, testSession)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func (e *testEnv) login(t *testing.T) string {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/v1/auth/login", LoginRequestDTO{Username: "admin", Password: testPassword})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp LoginResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp.Token
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v), w.Body.String())
	return v
}
