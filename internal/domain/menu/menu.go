package menu

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested menu item does not exist.
var ErrNotFound = errors.New("menu item not found")

// Placeholders used when an ordered menu item was removed from the catalog.
const (
	PlaceholderName  = "Item no longer available"
	PlaceholderImage = "placeholder.png"
)

// Option is a selectable surcharge on a menu item: a size or an add-on.
// A missing price decodes as zero.
type Option struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// Item is a catalog entry of a restaurant.
type Item struct {
	ID           string
	RestaurantID string
	Name         string
	Image        string
	Price        decimal.Decimal
	IsOffer      bool
	OfferPrice   decimal.NullDecimal
	Sizes        []Option
	AddOns       []Option
}

// Size returns the size option with the given name.
func (i Item) Size(name string) (Option, bool) {
	return findOption(i.Sizes, name)
}

// AddOn returns the add-on option with the given name.
func (i Item) AddOn(name string) (Option, bool) {
	return findOption(i.AddOns, name)
}

func findOption(opts []Option, name string) (Option, bool) {
	for _, o := range opts {
		if o.Name == name {
			return o, true
		}
	}
	return Option{}, false
}

// Repository defines read operations for the menu catalog.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Item, error)
	// GetByIDs returns the items that still exist; missing ids are skipped.
	GetByIDs(ctx context.Context, ids []string) ([]Item, error)
}
