package service

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeProduct(mod func(p *ProductInput)) ProductInput {
	p := ProductInput{
		ID:       "p1",
		Name:     "P",
		Variants: []VariantInput{{ID: "v1", Name: "Small", Price: 10.0, Stock: 5.0}},
	}
	if mod != nil {
		mod(&p)
	}
	return p
}

func TestValidateProductData_ValidProduct(t *testing.T) {
	res := ValidateProductData(makeProduct(func(p *ProductInput) {
		p.Name = "Shirt"
		p.Variants = []VariantInput{{ID: "v1", Name: "Default", Price: 1, Stock: 1}}
	}))
	assert.True(t, res.Valid)
	assert.Empty(t, res.Errors.Variants)
}

func TestValidateProductData_Name(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		invalid bool
	}{
		{"empty", "", true},
		{"blank", "   ", true},
		{"at limit", strings.Repeat("a", 100), false},
		{"over limit", strings.Repeat("a", 101), true},
		{"multibyte at limit", strings.Repeat("ñ", 100), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ValidateProductData(makeProduct(func(p *ProductInput) { p.Name = tt.value }))
			assert.Equal(t, !tt.invalid, res.Valid)
			if tt.invalid {
				assert.NotEmpty(t, res.Errors.Name)
			}
		})
	}
}

func TestValidateProductData_Description(t *testing.T) {
	res := ValidateProductData(makeProduct(func(p *ProductInput) { p.Description = strings.Repeat("d", 501) }))
	assert.False(t, res.Valid)
	assert.NotEmpty(t, res.Errors.Description)
}

func TestValidateProductData_VariantPrice(t *testing.T) {
	tests := []struct {
		name  string
		price any
		ok    bool
	}{
		{"negative", -5.0, false},
		{"string", "10", false},
		{"nil", nil, false},
		{"nan", math.NaN(), false},
		{"zero", 0, true},
		{"json number", json.Number("12.99"), true},
		{"bad json number", json.Number("abc"), false},
		{"largest column value", json.Number("9999999999.99"), true},
		{"past column range", json.Number("10000000000"), false},
		{"rounds past column range", 9999999999.999, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ValidateProductData(makeProduct(func(p *ProductInput) { p.Variants[0].Price = tt.price }))
			assert.Equal(t, tt.ok, res.Valid)
			if !tt.ok {
				require.Contains(t, res.Errors.Variants, 0)
				assert.NotEmpty(t, res.Errors.Variants[0].Price)
				assert.Empty(t, res.Errors.Variants[0].Stock)
			}
		})
	}
}

func TestValidateProductData_VariantStock(t *testing.T) {
	tests := []struct {
		name  string
		stock any
		ok    bool
	}{
		{"negative", -1, false},
		{"fraction", 1.5, false},
		{"string", "3", false},
		{"whole float", 3.0, true},
		{"int", 0, true},
		{"json exponent", json.Number("3e2"), true},
		{"max int32", json.Number("2147483647"), true},
		{"past int32", json.Number("2147483648"), false},
		{"huge whole value", json.Number("1e20"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ValidateProductData(makeProduct(func(p *ProductInput) { p.Variants[0].Stock = tt.stock }))
			assert.Equal(t, tt.ok, res.Valid)
			if !tt.ok {
				assert.NotEmpty(t, res.Errors.Variants[0].Stock)
			}
		})
	}
}

func TestValidateProductData_ErrorsKeyedByVariantIndex(t *testing.T) {
	res := ValidateProductData(makeProduct(func(p *ProductInput) {
		p.Variants = []VariantInput{
			{Name: "Ok", Price: 1, Stock: 1},
			{Name: "", Price: 1, Stock: 1},
			{Name: "Bad", Price: -1, Stock: -1},
		}
	}))

	assert.False(t, res.Valid)
	assert.NotContains(t, res.Errors.Variants, 0)
	assert.NotEmpty(t, res.Errors.Variants[1].Name)
	assert.NotEmpty(t, res.Errors.Variants[2].Price)
	assert.NotEmpty(t, res.Errors.Variants[2].Stock)
}

func TestValidateProductData_DecodedJSON(t *testing.T) {
	var p ProductInput
	require.NoError(t, json.Unmarshal([]byte(`{"name":"Shirt","variants":[{"name":"M","price":"9.99","stock":2}]}`), &p))

	res := ValidateProductData(p)
	assert.False(t, res.Valid)
	assert.NotEmpty(t, res.Errors.Variants[0].Price)
}

func TestToProduct_ParsesJSONNumbersExactly(t *testing.T) {
	dec := json.NewDecoder(strings.NewReader(`{"name":"Shirt","variants":[{"name":"M","price":0.1,"stock":3e2}]}`))
	dec.UseNumber()
	var p ProductInput
	require.NoError(t, dec.Decode(&p))
	require.True(t, ValidateProductData(p).Valid)

	out := p.toProduct()

	require.Len(t, out.Variants, 1)
	assert.Equal(t, "0.10", out.Variants[0].Price.StringFixed(2))
	assert.True(t, out.Variants[0].Price.Equal(decimal.RequireFromString("0.1")))
	assert.Equal(t, 300, out.Variants[0].Stock)
}
