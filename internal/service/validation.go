package service

import (
	"encoding/json"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/shopspring/decimal"
)

const (
	maxProductNameLen        = 100
	maxProductDescriptionLen = 500
)

var (
	// NUMERIC(12,2) and INTEGER column bounds
	maxPrice = decimal.New(1, 10)
	maxStock = decimal.NewFromInt(math.MaxInt32)
)

// VariantInput is a variant as submitted by the admin form. Price and Stock
// keep their raw JSON type so that non-numeric input can be reported.
type VariantInput struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Price any    `json:"price"`
	Stock any    `json:"stock"`
}

type ProductInput struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	ImageURL    string         `json:"image_url"`
	Variants    []VariantInput `json:"variants"`
}

type VariantErrors struct {
	Name  string `json:"name,omitempty"`
	Price string `json:"price,omitempty"`
	Stock string `json:"stock,omitempty"`
}

func (e VariantErrors) empty() bool {
	return e.Name == "" && e.Price == "" && e.Stock == ""
}

type ProductErrors struct {
	Name        string                `json:"name,omitempty"`
	Description string                `json:"description,omitempty"`
	Variants    map[int]VariantErrors `json:"variants"`
}

type ProductValidationResult struct {
	Valid  bool          `json:"valid"`
	Errors ProductErrors `json:"errors"`
}

// ValidateProductData checks admin input before it is stored. Variant errors
// are keyed by the variant's index in the input.
func ValidateProductData(p ProductInput) ProductValidationResult {
	errs := ProductErrors{Variants: map[int]VariantErrors{}}

	switch {
	case strings.TrimSpace(p.Name) == "":
		errs.Name = "Product name is required."
	case utf8.RuneCountInString(p.Name) > maxProductNameLen:
		errs.Name = "Product name cannot exceed 100 characters."
	}
	if utf8.RuneCountInString(p.Description) > maxProductDescriptionLen {
		errs.Description = "Description cannot exceed 500 characters."
	}

	for i, v := range p.Variants {
		var ve VariantErrors
		if strings.TrimSpace(v.Name) == "" {
			ve.Name = "Variant name is required."
		}

		if price, ok := toDecimal(v.Price); !ok {
			ve.Price = "Invalid price."
		} else if price.IsNegative() {
			ve.Price = "Price must be >= 0."
		} else if price.Round(2).GreaterThanOrEqual(maxPrice) {
			ve.Price = "Price is too large."
		}

		if stock, ok := toDecimal(v.Stock); !ok || !stock.IsInteger() {
			ve.Stock = "Stock must be a whole number."
		} else if stock.IsNegative() {
			ve.Stock = "Stock must be >= 0."
		} else if stock.GreaterThan(maxStock) {
			ve.Stock = "Stock is too large."
		}

		if !ve.empty() {
			errs.Variants[i] = ve
		}
	}

	valid := errs.Name == "" && errs.Description == "" && len(errs.Variants) == 0
	return ProductValidationResult{Valid: valid, Errors: errs}
}

// toDecimal accepts only numeric values; strings such as "10" are rejected.
// json.Number is parsed exactly, without a float64 round trip.
func toDecimal(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(string(n))
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	case decimal.Decimal:
		return n, true
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int32:
		return decimal.NewFromInt32(n), true
	case int64:
		return decimal.NewFromInt(n), true
	case float32:
		return fromFloat(float64(n))
	case float64:
		return fromFloat(n)
	default:
		return decimal.Zero, false
	}
}

func fromFloat(f float64) (decimal.Decimal, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(f), true
}

// toProduct converts validated input. Empty ids are assigned by the store.
func (p ProductInput) toProduct() *domain.Product {
	out := &domain.Product{
		ID:          p.ID,
		Name:        strings.TrimSpace(p.Name),
		Description: p.Description,
		ImageURL:    p.ImageURL,
		Variants:    make([]domain.ProductVariant, 0, len(p.Variants)),
	}
	for _, v := range p.Variants {
		price, _ := toDecimal(v.Price)
		stock, _ := toDecimal(v.Stock)
		out.Variants = append(out.Variants, domain.ProductVariant{
			ID:        v.ID,
			ProductID: p.ID,
			Name:      strings.TrimSpace(v.Name),
			Price:     price.Round(2),
			Stock:     int(stock.IntPart()),
		})
	}
	return out
}
