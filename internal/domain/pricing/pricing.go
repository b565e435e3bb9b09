// Package pricing computes the billable amounts of cart lines and orders.
//
// All arithmetic is exact decimal arithmetic. Nothing is rounded until the
// final order total, which is rounded to two decimal places.
package pricing

import (
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/food-orders/internal/domain/menu"
)

var hundred = decimal.NewFromInt(100)

// ErrInvalidPercentage is returned for discounts outside [0, 100].
var ErrInvalidPercentage = errors.New("discount percentage must be between 0 and 100")

// BasePrice returns the price a customer pays for the item before options:
// the offer price while an offer is active, the list price otherwise.
func BasePrice(item menu.Item) decimal.Decimal {
	if item.IsOffer && item.OfferPrice.Valid {
		return item.OfferPrice.Decimal
	}
	return item.Price
}

// PriceLine returns the unit total of an item with the selected options.
func PriceLine(item menu.Item, size *menu.Option, addOns []menu.Option) decimal.Decimal {
	return UnitTotal(BasePrice(item), size, addOns)
}

// UnitTotal adds the size surcharge and every add-on surcharge to base.
func UnitTotal(base decimal.Decimal, size *menu.Option, addOns []menu.Option) decimal.Decimal {
	total := base
	if size != nil {
		total = total.Add(size.Price)
	}
	for _, a := range addOns {
		total = total.Add(a.Price)
	}
	return total
}

// Line is the priced view of one cart or order line.
type Line struct {
	ID        string
	UnitPrice decimal.Decimal
	Size      *menu.Option
	AddOns    []menu.Option
	Quantity  int
}

// InvalidLineError describes a line that cannot be billed.
type InvalidLineError struct {
	ID     string
	Reason string
}

func (e *InvalidLineError) Error() string {
	return fmt.Sprintf("line %s: %s", e.ID, e.Reason)
}

// Validate checks that the quantity is positive and no amount is negative.
func (l Line) Validate() error {
	if l.Quantity < 1 {
		return &InvalidLineError{ID: l.ID, Reason: "quantity must be at least 1"}
	}
	if l.UnitPrice.IsNegative() {
		return &InvalidLineError{ID: l.ID, Reason: "unit price must not be negative"}
	}
	if l.Size != nil && l.Size.Price.IsNegative() {
		return &InvalidLineError{ID: l.ID, Reason: fmt.Sprintf("size %q has a negative surcharge", l.Size.Name)}
	}
	for _, a := range l.AddOns {
		if a.Price.IsNegative() {
			return &InvalidLineError{ID: l.ID, Reason: fmt.Sprintf("add-on %q has a negative surcharge", a.Name)}
		}
	}
	return nil
}

// UnitTotal returns the unit price with all surcharges.
func (l Line) UnitTotal() decimal.Decimal {
	return UnitTotal(l.UnitPrice, l.Size, l.AddOns)
}

// Total returns UnitTotal multiplied by the quantity.
func (l Line) Total() decimal.Decimal {
	return l.UnitTotal().Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Subtotal returns the sum of line totals.
func Subtotal(lines []Line) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.Total())
	}
	return sum
}

// ValidatePercentage checks that a discount percentage lies in [0, 100].
func ValidatePercentage(percent decimal.Decimal) error {
	if percent.IsNegative() || percent.GreaterThan(hundred) {
		return ErrInvalidPercentage
	}
	return nil
}

// ApplyDiscount returns subtotal*(1 - percent/100) rounded to two decimal
// places. A zero percent returns the rounded subtotal.
func ApplyDiscount(subtotal, percent decimal.Decimal) decimal.Decimal {
	factor := hundred.Sub(percent).Div(hundred)
	total := subtotal.Mul(factor)
	if total.IsNegative() {
		total = decimal.Zero
	}
	return total.Round(2)
}

// Total computes the final amount for lines with an optional discount.
func Total(lines []Line, percent decimal.NullDecimal) decimal.Decimal {
	subtotal := Subtotal(lines)
	if !percent.Valid {
		return subtotal.Round(2)
	}
	return ApplyDiscount(subtotal, percent.Decimal)
}
