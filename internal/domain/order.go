package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
)

// CanTransitionTo reports whether the order may move from s to next.
// The only legal move is pending -> confirmed.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	return s == OrderStatusPending && next == OrderStatusConfirmed
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusConfirmed
}

func (s OrderStatus) Valid() bool {
	return s == OrderStatusPending || s == OrderStatusConfirmed
}

func (s OrderStatus) String() string {
	return string(s)
}

// OrderItem copies product and variant data at order time so historical
// orders stay accurate after the catalog changes.
type OrderItem struct {
	ID          int64           `json:"id"`
	OrderID     uuid.UUID       `json:"order_id"`
	ProductID   string          `json:"product_id"`
	VariantID   string          `json:"variant_id"`
	ProductName string          `json:"product_name"`
	VariantName string          `json:"variant_name"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
}

type Order struct {
	ID        uuid.UUID       `json:"id"`
	CreatedAt time.Time       `json:"created_at"`
	Total     decimal.Decimal `json:"total"`
	Status    OrderStatus     `json:"status"`
	Items     []OrderItem     `json:"order_items"`
}

// OrderSnapshot is the frozen content of a cart at order-generation time.
type OrderSnapshot struct {
	ID          uuid.UUID       `json:"id"`
	Items       []CartLineItem  `json:"items"`
	Total       decimal.Decimal `json:"total"`
	CompanyInfo CompanyInfo     `json:"companyInfo"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// Outbox event types written alongside order changes.
const (
	EventOrderCreated   = "OrderCreated"
	EventOrderConfirmed = "OrderConfirmed"
)
