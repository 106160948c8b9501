package service

import (
	"context"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/handoff"
	"github.com/google/uuid"
)

type CatalogRepository interface {
	ListProducts(ctx context.Context) ([]*domain.Product, error)
	SaveProduct(ctx context.Context, p *domain.Product) error
	DeleteProduct(ctx context.Context, id string) error
	GetCompanyInfo(ctx context.Context) (*domain.CompanyInfo, error)
	UpdateCompanyInfo(ctx context.Context, info *domain.CompanyInfo) error
}

type OrderRepository interface {
	CreateOrder(ctx context.Context, order *domain.Order) error
	ListOrders(ctx context.Context) ([]*domain.Order, error)
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, from, to domain.OrderStatus) error
}

// StockRepository decrements variant stock once per order item.
type StockRepository interface {
	DecreaseStock(ctx context.Context, orderItemID int64, variantID string, quantity int) error
}

// Handoff forwards a prepared buyer-to-seller message.
type Handoff interface {
	Open(ctx context.Context, req handoff.Request) error
}
