package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/fjod/go_storefront/internal/domain"
	r "github.com/fjod/go_storefront/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ShopStatus is the readiness of the cached shop data.
type ShopStatus struct {
	Ready bool   `json:"ready"`
	Error string `json:"error,omitempty"`
}

// ShopService caches products, company info and orders. Values handed out
// are shared and must not be modified by callers.
type ShopService struct {
	catalog CatalogRepository
	orders  OrderRepository
	log     *zap.Logger

	mu       sync.RWMutex
	products []*domain.Product
	company  *domain.CompanyInfo
	orderSet []*domain.Order
	ready    bool
	lastErr  string
}

func NewShopService(catalog CatalogRepository, orders OrderRepository, log *zap.Logger) *ShopService {
	return &ShopService{catalog: catalog, orders: orders, log: log}
}

// Refresh reloads products, company info and orders concurrently. The cache
// is replaced only when all three loads succeed.
func (s *ShopService) Refresh(ctx context.Context) error {
	var (
		products []*domain.Product
		company  *domain.CompanyInfo
		orders   []*domain.Order
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		products, err = s.catalog.ListProducts(gctx)
		if err != nil {
			return fmt.Errorf("load products: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		company, err = s.catalog.GetCompanyInfo(gctx)
		if errors.Is(err, r.ErrCompanyInfoNotFound) {
			company, err = nil, nil
		}
		if err != nil {
			return fmt.Errorf("load company info: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		orders, err = s.orders.ListOrders(gctx)
		if err != nil {
			return fmt.Errorf("load orders: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		s.fail(err)
		return err
	}

	s.mu.Lock()
	s.products = products
	s.company = company
	s.orderSet = orders
	s.ready = true
	s.lastErr = ""
	s.mu.Unlock()
	return nil
}

func (s *ShopService) fail(err error) {
	s.log.Error("shop operation failed", zap.Error(err))
	s.mu.Lock()
	s.lastErr = err.Error()
	s.mu.Unlock()
}

func (s *ShopService) Status() ShopStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ShopStatus{Ready: s.ready, Error: s.lastErr}
}

func (s *ShopService) Products() []*domain.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*domain.Product(nil), s.products...)
}

func (s *ShopService) FindProduct(id string) (*domain.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.products {
		if p.ID == id {
			return p, true
		}
	}
	return nil, false
}

// Search matches query case-insensitively against name and description.
func (s *ShopService) Search(query string) []*domain.Product {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return s.Products()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Product
	for _, p := range s.products {
		if strings.Contains(strings.ToLower(p.Name), q) || strings.Contains(strings.ToLower(p.Description), q) {
			out = append(out, p)
		}
	}
	return out
}

// CompanyInfo returns nil until the seller identity has been loaded.
func (s *ShopService) CompanyInfo() *domain.CompanyInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.company
}

func (s *ShopService) Orders() []*domain.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*domain.Order(nil), s.orderSet...)
}

func (s *ShopService) FindOrder(id uuid.UUID) (*domain.Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, o := range s.orderSet {
		if o.ID == id {
			return o, true
		}
	}
	return nil, false
}

// SaveProduct validates input, stores it and reloads the cache. Invalid input
// returns *ValidationError and never reaches the repository.
func (s *ShopService) SaveProduct(ctx context.Context, input ProductInput) (*domain.Product, error) {
	res := ValidateProductData(input)
	if !res.Valid {
		return nil, &ValidationError{Result: res}
	}

	p := input.toProduct()
	if err := s.catalog.SaveProduct(ctx, p); err != nil {
		err = fmt.Errorf("save product: %w", err)
		s.fail(err)
		return nil, err
	}
	s.refreshAfterWrite(ctx)
	return p, nil
}

func (s *ShopService) DeleteProduct(ctx context.Context, id string) error {
	if err := s.catalog.DeleteProduct(ctx, id); err != nil {
		err = fmt.Errorf("delete product: %w", err)
		s.fail(err)
		return err
	}
	s.refreshAfterWrite(ctx)
	return nil
}

func (s *ShopService) UpdateCompanyInfo(ctx context.Context, info domain.CompanyInfo) error {
	if strings.TrimSpace(info.Name) == "" {
		return &ValidationError{Result: ProductValidationResult{
			Errors: ProductErrors{Name: "Company name is required"},
		}}
	}
	if err := s.catalog.UpdateCompanyInfo(ctx, &info); err != nil {
		err = fmt.Errorf("update company info: %w", err)
		s.fail(err)
		return err
	}
	s.refreshAfterWrite(ctx)
	return nil
}

// refreshAfterWrite reloads the cache after a successful write. A reload
// failure is recorded in Status but does not fail the write.
func (s *ShopService) refreshAfterWrite(ctx context.Context) {
	if err := s.Refresh(ctx); err != nil {
		s.log.Warn("refresh after write failed", zap.Error(err))
	}
}
