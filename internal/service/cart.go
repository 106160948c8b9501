package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/kvstore"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const cartKey = "cart"

// MaxLineQuantity bounds the quantity of a single cart line.
const MaxLineQuantity = 99

// Cart is one buyer's cart. Every mutation writes the whole line list back
// to the store; other handles on the same session pick the change up
// through the store subscription (last write wins).
type Cart struct {
	store *kvstore.Store
	log   *zap.Logger

	writeMu sync.Mutex // serializes mutations on this handle

	mu        sync.RWMutex
	items     []domain.CartLineItem
	listeners map[int]func([]domain.CartLineItem)
	nextID    int

	unsubscribe func()
}

func newCart(store *kvstore.Store, log *zap.Logger, items []domain.CartLineItem) *Cart {
	c := &Cart{
		store:     store,
		log:       log,
		items:     normalizeItems(items),
		listeners: make(map[int]func([]domain.CartLineItem)),
	}
	c.unsubscribe = kvstore.Watch(store, cartKey, []domain.CartLineItem(nil), c.apply)
	return c
}

// apply replaces the in-memory lines with a value written elsewhere.
func (c *Cart) apply(items []domain.CartLineItem) {
	items = normalizeItems(items)

	c.mu.Lock()
	c.items = items
	listeners := make([]func([]domain.CartLineItem), 0, len(c.listeners))
	for _, fn := range c.listeners {
		listeners = append(listeners, fn)
	}
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(domain.CloneItems(items))
	}
}

// AddItem merges quantity into the line with the same product and variant,
// or appends item as a new line. A merge that would take the line past
// MaxLineQuantity fails with ErrInvalidQuantity and leaves the cart as is.
func (c *Cart) AddItem(ctx context.Context, item domain.CartLineItem, quantity int) error {
	if quantity <= 0 || quantity > MaxLineQuantity {
		return ErrInvalidQuantity
	}
	var overflow bool
	err := c.mutate(ctx, func(items []domain.CartLineItem) ([]domain.CartLineItem, bool) {
		for i := range items {
			if items[i].Key() == item.Key() {
				if items[i].Quantity > MaxLineQuantity-quantity {
					overflow = true
					return items, false
				}
				items[i].Quantity += quantity
				return items, true
			}
		}
		item.Quantity = quantity
		return append(items, item), true
	})
	if overflow {
		return ErrInvalidQuantity
	}
	return err
}

// UpdateQuantity sets the line's quantity to max(0, quantity). A line that
// reaches zero is removed. Unknown lines are ignored.
func (c *Cart) UpdateQuantity(ctx context.Context, productID, variantID string, quantity int) error {
	if quantity > MaxLineQuantity {
		return ErrInvalidQuantity
	}
	key := domain.LineKey{ProductID: productID, VariantID: variantID}
	return c.mutate(ctx, func(items []domain.CartLineItem) ([]domain.CartLineItem, bool) {
		for i := range items {
			if items[i].Key() != key {
				continue
			}
			if quantity <= 0 {
				return append(items[:i], items[i+1:]...), true
			}
			items[i].Quantity = quantity
			return items, true
		}
		return items, false
	})
}

func (c *Cart) RemoveItem(ctx context.Context, productID, variantID string) error {
	key := domain.LineKey{ProductID: productID, VariantID: variantID}
	return c.mutate(ctx, func(items []domain.CartLineItem) ([]domain.CartLineItem, bool) {
		for i := range items {
			if items[i].Key() == key {
				return append(items[:i], items[i+1:]...), true
			}
		}
		return items, false
	})
}

func (c *Cart) Clear(ctx context.Context) error {
	return c.mutate(ctx, func(items []domain.CartLineItem) ([]domain.CartLineItem, bool) {
		return []domain.CartLineItem{}, true
	})
}

// Items returns a copy of the current lines in insertion order.
func (c *Cart) Items() []domain.CartLineItem {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return domain.CloneItems(c.items)
}

// Total is recomputed from the current lines on every call.
func (c *Cart) Total() decimal.Decimal {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return domain.CartTotal(c.items)
}

func (c *Cart) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, it := range c.items {
		n += it.Quantity
	}
	return n
}

// OnChange registers fn to receive the lines after every change, whichever
// handle made it. The returned func unregisters fn.
func (c *Cart) OnChange(fn func([]domain.CartLineItem)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	id := c.nextID
	c.listeners[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
	}
}

// Close detaches the handle from the store.
func (c *Cart) Close() {
	c.unsubscribe()
}

// mutate applies fn to a copy of the lines. When fn reports a change the
// new lines become current and are persisted; a failed write is returned
// but the in-memory lines keep the change.
func (c *Cart) mutate(ctx context.Context, fn func([]domain.CartLineItem) ([]domain.CartLineItem, bool)) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	next, changed := fn(domain.CloneItems(c.items))
	if !changed {
		c.mu.Unlock()
		return nil
	}
	if next == nil {
		next = []domain.CartLineItem{}
	}
	c.items = next
	c.mu.Unlock()

	if err := kvstore.Set(ctx, c.store, cartKey, next, 0); err != nil {
		c.log.Warn("cart not persisted, keeping in-memory state",
			zap.String("namespace", c.store.Namespace()), zap.Error(err))
		return fmt.Errorf("persist cart: %w", err)
	}
	return nil
}

// normalizeItems merges lines sharing a key and drops non-positive
// quantities, so rehydrated data always satisfies the cart invariants.
func normalizeItems(items []domain.CartLineItem) []domain.CartLineItem {
	out := make([]domain.CartLineItem, 0, len(items))
	index := make(map[domain.LineKey]int, len(items))
	for _, it := range items {
		if it.Quantity <= 0 {
			continue
		}
		if i, ok := index[it.Key()]; ok {
			out[i].Quantity += it.Quantity
			continue
		}
		index[it.Key()] = len(out)
		out = append(out, it)
	}
	return out
}
