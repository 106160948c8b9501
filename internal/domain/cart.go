package domain

import "github.com/shopspring/decimal"

// LineKey identifies a cart line. A cart holds at most one line per key.
type LineKey struct {
	ProductID string
	VariantID string
}

type CartLineItem struct {
	ProductID   string          `json:"productId"`
	VariantID   string          `json:"variantId"`
	Name        string          `json:"name"`
	VariantName string          `json:"variantName"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	ImageURL    string          `json:"imageUrl,omitempty"`
	Description string          `json:"description,omitempty"`
}

func (i CartLineItem) Key() LineKey {
	return LineKey{ProductID: i.ProductID, VariantID: i.VariantID}
}

func (i CartLineItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// CartTotal sums price x quantity over items.
func CartTotal(items []CartLineItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.LineTotal())
	}
	return total
}

// CloneItems returns a copy of items that shares no backing array with it.
func CloneItems(items []CartLineItem) []CartLineItem {
	if items == nil {
		return nil
	}
	out := make([]CartLineItem, len(items))
	copy(out, items)
	return out
}
