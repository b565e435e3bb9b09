package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/food-orders/internal/domain/menu"
	"github.com/xenking/food-orders/internal/domain/pricing"
	"github.com/xenking/food-orders/internal/domain/user"
)

// AddItem is a request to stage a menu item.
type AddItem struct {
	MenuItemID string
	Quantity   int
	Size       string
	AddOns     []string
}

// Service implements add-to-cart and cart reads.
type Service struct {
	users user.Repository
	menu  menu.Repository
	carts Repository
	now   func() time.Time
}

// NewService creates a cart Service.
func NewService(users user.Repository, items menu.Repository, carts Repository) *Service {
	return &Service{
		users: users,
		menu:  items,
		carts: carts,
		now:   time.Now,
	}
}

// Add validates the requested items against the catalog and stores them as
// one new cart document. Prices are captured from the current menu state.
func (s *Service) Add(ctx context.Context, userID string, items []AddItem) (*Cart, error) {
	if len(items) == 0 {
		return nil, ErrNoItems
	}
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, errors.Wrap(err, "get user")
	}

	lines := make([]Line, 0, len(items))
	for _, it := range items {
		if it.Quantity < 1 {
			return nil, ErrInvalidQuantity
		}
		mi, err := s.menu.GetByID(ctx, it.MenuItemID)
		if err != nil {
			return nil, errors.Wrapf(err, "get menu item %s", it.MenuItemID)
		}
		line, err := snapshot(mi, it)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}

	c := &Cart{
		ID:        uuid.New().String(),
		UserID:    userID,
		Items:     lines,
		CreatedAt: s.now().UTC(),
	}
	if err := s.carts.Add(ctx, c); err != nil {
		return nil, errors.Wrap(err, "add cart")
	}
	return c, nil
}

// Get returns the flattened cart of the user. An empty cart yields an
// empty slice.
func (s *Service) Get(ctx context.Context, userID string) ([]Line, error) {
	carts, err := s.carts.ListByUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list carts")
	}
	return Flatten(carts), nil
}

func snapshot(mi *menu.Item, it AddItem) (Line, error) {
	line := Line{
		RestaurantID: mi.RestaurantID,
		MenuItemID:   mi.ID,
		Quantity:     it.Quantity,
		UnitPrice:    pricing.BasePrice(*mi),
	}
	if it.Size != "" {
		opt, ok := mi.Size(it.Size)
		if !ok {
			return Line{}, &UnknownOptionError{MenuItemID: mi.ID, Kind: "size", Name: it.Size}
		}
		line.Size = &opt
	}
	for _, name := range it.AddOns {
		opt, ok := mi.AddOn(name)
		if !ok {
			return Line{}, &UnknownOptionError{MenuItemID: mi.ID, Kind: "add-on", Name: name}
		}
		line.AddOns = append(line.AddOns, opt)
	}
	return line, nil
}
