package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/fjod/go_storefront/internal/domain"
	r "github.com/fjod/go_storefront/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ConfirmationService struct {
	shop   *ShopService
	stock  StockRepository
	orders OrderRepository
	log    *zap.Logger
}

func NewConfirmationService(shop *ShopService, stock StockRepository, orders OrderRepository, log *zap.Logger) *ConfirmationService {
	return &ConfirmationService{shop: shop, stock: stock, orders: orders, log: log}
}

// ConfirmOrder decrements stock for each item of a loaded pending order, one
// at a time, then marks it confirmed. The first failing decrement stops the
// sequence and the order stays pending. Decrements are recorded per order
// item, so calling ConfirmOrder again after a failure only applies the
// items that were not yet applied.
func (s *ConfirmationService) ConfirmOrder(ctx context.Context, orderID uuid.UUID) error {
	order, ok := s.shop.FindOrder(orderID)
	if !ok {
		return ErrOrderNotFound
	}
	if !order.Status.CanTransitionTo(domain.OrderStatusConfirmed) {
		return fmt.Errorf("%w: order %s is %s", ErrIllegalTransition, orderID, order.Status)
	}

	log := s.log.With(zap.String("order_id", orderID.String()))
	for i, it := range order.Items {
		if err := s.stock.DecreaseStock(ctx, it.ID, it.VariantID, it.Quantity); err != nil {
			err = fmt.Errorf("decrease stock for item %d of %d (%s / %s): %w",
				i+1, len(order.Items), it.ProductName, it.VariantName, err)
			s.shop.fail(err)
			return err
		}
	}

	err := s.orders.UpdateOrderStatus(ctx, orderID, domain.OrderStatusPending, domain.OrderStatusConfirmed)
	switch {
	case errors.Is(err, r.ErrOrderNotFound):
		return ErrOrderNotFound
	case errors.Is(err, r.ErrStatusConflict):
		return fmt.Errorf("%w: order %s is no longer pending", ErrIllegalTransition, orderID)
	case err != nil:
		err = fmt.Errorf("confirm order: %w", err)
		s.shop.fail(err)
		return err
	}
	log.Info("order confirmed", zap.Int("items", len(order.Items)))

	if err := s.shop.Refresh(ctx); err != nil {
		log.Warn("refresh after confirmation failed", zap.Error(err))
	}
	return nil
}
