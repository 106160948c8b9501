package service

import (
	"context"
	"errors"
	"time"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/handoff"
	r "github.com/fjod/go_storefront/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CartClearer is the part of a cart the checkout needs.
type CartClearer interface {
	Clear(ctx context.Context) error
}

type SendResult struct {
	OrderID    uuid.UUID `json:"order_id"`
	HandoffURL string    `json:"handoff_url,omitempty"`
	Message    string    `json:"message"`
}

type CheckoutService struct {
	orders        OrderRepository
	handoff       Handoff
	messagingHost string
	log           *zap.Logger
	now           func() time.Time
}

func NewCheckoutService(orders OrderRepository, h Handoff, messagingHost string, log *zap.Logger) *CheckoutService {
	return &CheckoutService{
		orders:        orders,
		handoff:       h,
		messagingHost: messagingHost,
		log:           log,
		now:           time.Now,
	}
}

// SendOrder hands the snapshot to the seller and records it as a pending
// order. The order id is the snapshot id, so sending the same snapshot twice
// stores one order. The cart is cleared only after the order is stored.
func (s *CheckoutService) SendOrder(ctx context.Context, cart CartClearer, snap *domain.OrderSnapshot) (*SendResult, error) {
	if snap == nil || len(snap.Items) == 0 {
		return nil, ErrEmptyCart
	}
	log := s.log.With(zap.String("snapshot_id", snap.ID.String()))

	msg := handoff.FormatMessage(snap)
	link, err := handoff.Link(s.messagingHost, snap.CompanyInfo.Phone, msg)
	if err != nil {
		log.Warn("handoff link not available", zap.Error(err))
	} else if err := s.handoff.Open(ctx, handoff.Request{
		SnapshotID: snap.ID,
		Seller:     snap.CompanyInfo.Name,
		Phone:      snap.CompanyInfo.Phone,
		URL:        link,
		Message:    msg,
		CreatedAt:  s.now(),
	}); err != nil {
		log.Warn("handoff failed, continuing with order", zap.Error(err))
	}

	order := orderFromSnapshot(snap)
	err = s.orders.CreateOrder(ctx, order)
	switch {
	case errors.Is(err, r.ErrDuplicateOrder):
		log.Info("order already stored for snapshot")
	case err != nil:
		log.Error("order not saved", zap.Error(err))
		return nil, &OrderNotSavedError{Seller: snap.CompanyInfo.Name, Err: err}
	}

	if err := cart.Clear(ctx); err != nil {
		log.Warn("order saved but cart not cleared", zap.Error(err))
	}

	return &SendResult{OrderID: order.ID, HandoffURL: link, Message: msg}, nil
}

func orderFromSnapshot(snap *domain.OrderSnapshot) *domain.Order {
	order := &domain.Order{
		ID:     snap.ID,
		Total:  snap.Total,
		Status: domain.OrderStatusPending,
		Items:  make([]domain.OrderItem, 0, len(snap.Items)),
	}
	for _, it := range snap.Items {
		order.Items = append(order.Items, domain.OrderItem{
			OrderID:     snap.ID,
			ProductID:   it.ProductID,
			VariantID:   it.VariantID,
			ProductName: it.Name,
			VariantName: it.VariantName,
			Quantity:    it.Quantity,
			Price:       it.Price,
		})
	}
	return order
}
