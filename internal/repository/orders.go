package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

type orderEventPayload struct {
	OrderID   string             `json:"order_id"`
	Status    string             `json:"status"`
	Total     decimal.Decimal    `json:"total"`
	Items     []domain.OrderItem `json:"items,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}

// CreateOrder inserts order, its items and an OrderCreated outbox event in
// one transaction. Generated item ids are written back into order.Items.
func (r *Repository) CreateOrder(ctx context.Context, order *domain.Order) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			`INSERT INTO orders (id, total, status, created_at)
			 VALUES ($1, $2, $3, COALESCE($4, NOW()))
			 RETURNING created_at`,
			order.ID, order.Total, order.Status, nullTime(order.CreatedAt),
		).Scan(&order.CreatedAt)
		if err != nil {
			if pqCode(err) == pqUniqueViolation {
				return ErrDuplicateOrder
			}
			return fmt.Errorf("insert order: %w", err)
		}

		for i := range order.Items {
			it := &order.Items[i]
			it.OrderID = order.ID
			err := tx.QueryRowContext(ctx,
				`INSERT INTO order_items (order_id, product_id, variant_id, product_name, variant_name, quantity, price)
				 VALUES ($1, $2, $3, $4, $5, $6, $7)
				 RETURNING id`,
				it.OrderID, it.ProductID, it.VariantID, it.ProductName, it.VariantName, it.Quantity, it.Price,
			).Scan(&it.ID)
			if err != nil {
				return fmt.Errorf("insert order item: %w", err)
			}
		}

		return insertOutboxEvent(ctx, tx, order.ID.String(), domain.EventOrderCreated, orderEventPayload{
			OrderID:   order.ID.String(),
			Status:    order.Status.String(),
			Total:     order.Total,
			Items:     order.Items,
			Timestamp: order.CreatedAt,
		})
	})
}

// ListOrders returns all orders with their items, newest first.
func (r *Repository) ListOrders(ctx context.Context) ([]*domain.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, created_at, total, status FROM orders ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var orders []*domain.Order
	byID := make(map[uuid.UUID]*domain.Order)
	for rows.Next() {
		o := &domain.Order{Items: []domain.OrderItem{}}
		if err := rows.Scan(&o.ID, &o.CreatedAt, &o.Total, &o.Status); err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, o)
		byID[o.ID] = o
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	if len(orders) == 0 {
		return orders, nil
	}

	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID.String())
	}
	irows, err := r.db.QueryContext(ctx,
		`SELECT id, order_id, product_id, variant_id, product_name, variant_name, quantity, price
		 FROM order_items WHERE order_id = ANY($1::uuid[]) ORDER BY id`,
		pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer irows.Close()

	for irows.Next() {
		var it domain.OrderItem
		if err := irows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.VariantID,
			&it.ProductName, &it.VariantName, &it.Quantity, &it.Price); err != nil {
			return nil, fmt.Errorf("scan order item row: %w", err)
		}
		if o, ok := byID[it.OrderID]; ok {
			o.Items = append(o.Items, it)
		}
	}
	if err := irows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return orders, nil
}

// UpdateOrderStatus moves order id from one status to another and records an
// outbox event. ErrStatusConflict means the order is no longer in from.
func (r *Repository) UpdateOrderStatus(ctx context.Context, id uuid.UUID, from, to domain.OrderStatus) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		var total decimal.Decimal
		err := tx.QueryRowContext(ctx,
			`UPDATE orders SET status = $3 WHERE id = $1 AND status = $2 RETURNING total`,
			id, from, to,
		).Scan(&total)
		if errors.Is(err, sql.ErrNoRows) {
			var exists bool
			if e2 := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists); e2 != nil {
				return fmt.Errorf("check order: %w", e2)
			}
			if !exists {
				return ErrOrderNotFound
			}
			return ErrStatusConflict
		}
		if err != nil {
			return fmt.Errorf("update order status: %w", err)
		}

		return insertOutboxEvent(ctx, tx, id.String(), domain.EventOrderConfirmed, orderEventPayload{
			OrderID:   id.String(),
			Status:    to.String(),
			Total:     total,
			Timestamp: time.Now().UTC(),
		})
	})
}

// DecreaseStock takes quantity units from variantID on behalf of one order
// item. Calling it again for the same order item changes nothing.
func (r *Repository) DecreaseStock(ctx context.Context, orderItemID int64, variantID string, quantity int) error {
	_, err := r.db.ExecContext(ctx, `SELECT decrease_stock($1, $2, $3)`, variantID, quantity, orderItemID)
	if err == nil {
		return nil
	}
	switch pqCode(err) {
	case pqNoDataFound:
		return fmt.Errorf("variant %s: %w", variantID, ErrVariantNotFound)
	case pqCheckViolation:
		return fmt.Errorf("variant %s: %w", variantID, ErrInsufficientStock)
	}
	return fmt.Errorf("decrease stock: %w", err)
}

func insertOutboxEvent(ctx context.Context, tx *sql.Tx, aggregateID, eventType string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO outbox_events (aggregate_id, event_type, payload) VALUES ($1, $2, $3)`,
		aggregateID, eventType, body)
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
