// Package cart stages menu items a user intends to buy.
//
// A user's cart is a collection of independent documents, one per
// add-to-cart call. Checkout consumes all of them at once.
package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/food-orders/internal/domain/menu"
	"github.com/xenking/food-orders/internal/domain/pricing"
)

var (
	// ErrEmptyCart is returned when a user has no staged lines.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrInvalidQuantity is returned for quantities below one.
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	// ErrNoItems is returned when an add-to-cart call carries no lines.
	ErrNoItems = errors.New("items required")
)

// UnknownOptionError indicates a size or add-on the menu item does not offer.
type UnknownOptionError struct {
	MenuItemID string
	Kind       string
	Name       string
}

func (e *UnknownOptionError) Error() string {
	return fmt.Sprintf("menu item %s has no %s %q", e.MenuItemID, e.Kind, e.Name)
}

// Line is one staged item. UnitPrice is the base price captured when the
// line was added and is never recomputed.
type Line struct {
	RestaurantID string          `json:"restaurantId"`
	MenuItemID   string          `json:"menuItemId"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unitPrice"`
	Size         *menu.Option    `json:"size,omitempty"`
	AddOns       []menu.Option   `json:"addOns,omitempty"`
}

// Priced returns the pricing view of the line.
func (l Line) Priced() pricing.Line {
	return pricing.Line{
		ID:        l.MenuItemID,
		UnitPrice: l.UnitPrice,
		Size:      l.Size,
		AddOns:    l.AddOns,
		Quantity:  l.Quantity,
	}
}

// Cart is a single staging document.
type Cart struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Items     []Line    `json:"items"`
	CreatedAt time.Time `json:"createdAt"`
}

// Repository stores cart documents keyed by user.
type Repository interface {
	// ListByUser returns the user's documents in insertion order.
	ListByUser(ctx context.Context, userID string) ([]Cart, error)
	Add(ctx context.Context, c *Cart) error
	// Consume removes the first n documents of the user. Documents added
	// after them stay. Consuming more than exist is not an error.
	Consume(ctx context.Context, userID string, n int) error
}

// Contents is a user's cart as read for checkout.
type Contents struct {
	Lines []Line
	// Documents is the number of documents Lines were read from.
	Documents int
}

// Flatten concatenates the lines of all documents in order. Identical
// menu items are kept as separate lines.
func Flatten(carts []Cart) []Line {
	n := 0
	for _, c := range carts {
		n += len(c.Items)
	}
	lines := make([]Line, 0, n)
	for _, c := range carts {
		lines = append(lines, c.Items...)
	}
	return lines
}
