package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/food-orders/internal/domain/menu"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestBasePrice(t *testing.T) {
	tests := []struct {
		name string
		item menu.Item
		want decimal.Decimal
	}{
		{
			name: "list price without offer",
			item: menu.Item{Price: d("10.00")},
			want: d("10.00"),
		},
		{
			name: "active offer overrides list price",
			item: menu.Item{Price: d("10.00"), IsOffer: true, OfferPrice: decimal.NewNullDecimal(d("7.50"))},
			want: d("7.50"),
		},
		{
			name: "offer flag without offer price falls back to list price",
			item: menu.Item{Price: d("10.00"), IsOffer: true},
			want: d("10.00"),
		},
		{
			name: "offer price ignored when offer inactive",
			item: menu.Item{Price: d("10.00"), OfferPrice: decimal.NewNullDecimal(d("7.50"))},
			want: d("10.00"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BasePrice(tt.item)
			assert.True(t, tt.want.Equal(got), "expected %s, got %s", tt.want, got)
		})
	}
}

func TestPriceLine(t *testing.T) {
	item := menu.Item{Price: d("10.00")}
	size := &menu.Option{Name: "L", Price: d("2.00")}
	addOns := []menu.Option{{Name: "cheese", Price: d("1.00")}, {Name: "sauce", Price: d("0.50")}}

	got := PriceLine(item, size, addOns)
	assert.True(t, d("13.50").Equal(got), "got %s", got)

	t.Run("add-on without price counts as zero", func(t *testing.T) {
		got := PriceLine(item, nil, []menu.Option{{Name: "napkins"}})
		assert.True(t, d("10.00").Equal(got), "got %s", got)
	})
}

func TestTotal(t *testing.T) {
	line := Line{
		ID:        "l1",
		UnitPrice: d("10.00"),
		Size:      &menu.Option{Name: "L", Price: d("2.00")},
		AddOns:    []menu.Option{{Name: "a", Price: d("1.00")}, {Name: "b", Price: d("0.50")}},
		Quantity:  2,
	}

	assert.True(t, d("27.00").Equal(line.Total()))

	tests := []struct {
		name    string
		lines   []Line
		percent decimal.NullDecimal
		want    decimal.Decimal
	}{
		{name: "no coupon", lines: []Line{line}, want: d("27.00")},
		{name: "25 percent coupon", lines: []Line{line}, percent: decimal.NewNullDecimal(d("25")), want: d("20.25")},
		{name: "zero percent coupon", lines: []Line{line}, percent: decimal.NewNullDecimal(decimal.Zero), want: d("27.00")},
		{name: "full discount", lines: []Line{line}, percent: decimal.NewNullDecimal(d("100")), want: d("0")},
		{
			name: "duplicate lines priced independently",
			lines: []Line{
				{ID: "a", UnitPrice: d("3.33"), Quantity: 1},
				{ID: "b", UnitPrice: d("3.33"), Quantity: 1},
			},
			want: d("6.66"),
		},
		{
			name:    "rounded only at the end",
			lines:   []Line{{ID: "a", UnitPrice: d("9.99"), Quantity: 3}},
			percent: decimal.NewNullDecimal(d("15")),
			// 29.97 * 0.85 = 25.4745
			want: d("25.47"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Total(tt.lines, tt.percent)
			assert.True(t, tt.want.Equal(got), "expected %s, got %s", tt.want, got)
		})
	}
}

func TestLineValidate(t *testing.T) {
	tests := []struct {
		name    string
		line    Line
		wantErr bool
	}{
		{name: "valid", line: Line{ID: "ok", UnitPrice: d("1"), Quantity: 1}},
		{name: "zero quantity", line: Line{ID: "q", UnitPrice: d("1")}, wantErr: true},
		{name: "negative price", line: Line{ID: "p", UnitPrice: d("-1"), Quantity: 1}, wantErr: true},
		{
			name:    "negative size surcharge",
			line:    Line{ID: "s", UnitPrice: d("1"), Quantity: 1, Size: &menu.Option{Name: "XL", Price: d("-2")}},
			wantErr: true,
		},
		{
			name:    "negative add-on surcharge",
			line:    Line{ID: "a", UnitPrice: d("1"), Quantity: 1, AddOns: []menu.Option{{Name: "x", Price: d("-0.1")}}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.line.Validate()
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			var lineErr *InvalidLineError
			require.ErrorAs(t, err, &lineErr)
			assert.Equal(t, tt.line.ID, lineErr.ID)
		})
	}
}

func TestValidatePercentage(t *testing.T) {
	require.NoError(t, ValidatePercentage(d("0")))
	require.NoError(t, ValidatePercentage(d("100")))
	require.ErrorIs(t, ValidatePercentage(d("-1")), ErrInvalidPercentage)
	require.ErrorIs(t, ValidatePercentage(d("100.01")), ErrInvalidPercentage)
}
