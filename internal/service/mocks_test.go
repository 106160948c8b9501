package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/handoff"
	"github.com/fjod/go_storefront/internal/kvstore"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MockCatalog implements CatalogRepository for testing
type MockCatalog struct {
	Products   []*domain.Product
	Company    *domain.CompanyInfo
	ListErr    error
	CompanyErr error
	SaveErr    error
	DeleteErr  error

	Saved   []*domain.Product
	Deleted []string
}

func (m *MockCatalog) ListProducts(_ context.Context) ([]*domain.Product, error) {
	return m.Products, m.ListErr
}

func (m *MockCatalog) SaveProduct(_ context.Context, p *domain.Product) error {
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.Saved = append(m.Saved, p)
	m.Products = append(m.Products, p)
	return nil
}

func (m *MockCatalog) DeleteProduct(_ context.Context, id string) error {
	m.Deleted = append(m.Deleted, id)
	return m.DeleteErr
}

func (m *MockCatalog) GetCompanyInfo(_ context.Context) (*domain.CompanyInfo, error) {
	return m.Company, m.CompanyErr
}

func (m *MockCatalog) UpdateCompanyInfo(_ context.Context, info *domain.CompanyInfo) error {
	m.Company = info
	return nil
}

// MockOrders implements OrderRepository for testing
type MockOrders struct {
	mu        sync.Mutex
	Orders    []*domain.Order
	CreateErr error
	ListErr   error
	UpdateErr error

	Created []*domain.Order
	Updated []uuid.UUID
}

func (m *MockOrders) CreateOrder(_ context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.Created = append(m.Created, order)
	return nil
}

func (m *MockOrders) ListOrders(_ context.Context) ([]*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Orders, m.ListErr
}

func (m *MockOrders) UpdateOrderStatus(_ context.Context, id uuid.UUID, _, to domain.OrderStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	m.Updated = append(m.Updated, id)
	for _, o := range m.Orders {
		if o.ID == id {
			o.Status = to
		}
	}
	return nil
}

type stockCall struct {
	OrderItemID int64
	VariantID   string
	Quantity    int
}

// MockStock implements StockRepository for testing. FailOn maps a call
// index (1-based) to the error that call returns.
type MockStock struct {
	FailOn map[int]error
	Calls  []stockCall
}

func (m *MockStock) DecreaseStock(_ context.Context, orderItemID int64, variantID string, quantity int) error {
	m.Calls = append(m.Calls, stockCall{OrderItemID: orderItemID, VariantID: variantID, Quantity: quantity})
	return m.FailOn[len(m.Calls)]
}

// MockHandoff implements Handoff for testing
type MockHandoff struct {
	Err      error
	Requests []handoff.Request
}

func (m *MockHandoff) Open(_ context.Context, req handoff.Request) error {
	m.Requests = append(m.Requests, req)
	return m.Err
}

// MockCart implements CartClearer for testing
type MockCart struct {
	Cleared  bool
	ClearErr error
}

func (m *MockCart) Clear(_ context.Context) error {
	m.Cleared = true
	return m.ClearErr
}

// flakyBackend wraps a memory backend and fails writes while setErr is set
// and reads while getErr is set.
type flakyBackend struct {
	*kvstore.MemoryBackend
	mu     sync.Mutex
	setErr error
	getErr error
}

func (b *flakyBackend) Get(ctx context.Context, key string) ([]byte, error) {
	b.mu.Lock()
	err := b.getErr
	b.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return b.MemoryBackend.Get(ctx, key)
}

func (b *flakyBackend) failReads(err error) {
	b.mu.Lock()
	b.getErr = err
	b.mu.Unlock()
}

func (b *flakyBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	b.mu.Lock()
	err := b.setErr
	b.mu.Unlock()
	if err != nil {
		return err
	}
	return b.MemoryBackend.Set(ctx, key, value, ttl)
}

func (b *flakyBackend) failWrites(err error) {
	b.mu.Lock()
	b.setErr = err
	b.mu.Unlock()
}

func newTestStore(t *testing.T) (*kvstore.Store, *flakyBackend) {
	t.Helper()
	mem := kvstore.NewMemoryBackend()
	t.Cleanup(mem.Close)
	backend := &flakyBackend{MemoryBackend: mem}
	return kvstore.New(backend, kvstore.WithLogger(zap.NewNop())), backend
}

var testCompany = domain.CompanyInfo{
	Name:    "Tienda Sol",
	Address: "Av. Principal 12",
	Phone:   "+58 412-555-0101",
	Email:   "ventas@tiendasol.example",
}
