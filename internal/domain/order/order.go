package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/food-orders/internal/domain/menu"
	"github.com/xenking/food-orders/internal/domain/pricing"
	"github.com/xenking/food-orders/internal/domain/restaurant"
	"github.com/xenking/food-orders/internal/domain/user"
)

// Status is the lifecycle state of an order.
type Status string

const (
	StatusPending    Status = "Pending"
	StatusInProgress Status = "InProgress"
	StatusCompleted  Status = "Completed"
	StatusCancelled  Status = "Cancelled"
)

// ErrUnknownStatus is returned by ParseStatus for unrecognised values.
var ErrUnknownStatus = errors.New("unknown order status")

// ParseStatus converts s into a Status.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusInProgress, StatusCompleted, StatusCancelled:
		return st, nil
	default:
		return "", ErrUnknownStatus
	}
}

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanTransition reports whether s may move to next.
//
//	Pending -> InProgress -> Completed
//	Pending | InProgress -> Cancelled
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusInProgress || next == StatusCancelled
	case StatusInProgress:
		return next == StatusCompleted || next == StatusCancelled
	default:
		return false
	}
}

// InvalidTransitionError indicates a forbidden status change.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot change order status from %s to %s", e.From, e.To)
}

// UserSnapshot is the copy of the customer profile taken at checkout.
type UserSnapshot struct {
	ID      string       `json:"id"`
	Name    string       `json:"name"`
	Email   string       `json:"email"`
	Phone   string       `json:"phone"`
	Address user.Address `json:"address"`
}

// NewUserSnapshot copies u so that later profile edits do not alter it.
func NewUserSnapshot(u *user.User) UserSnapshot {
	return UserSnapshot{
		ID:      u.ID,
		Name:    u.Name,
		Email:   u.Email,
		Phone:   u.Phone,
		Address: u.Address.Clone(),
	}
}

// Item is an order line. All fields are copies taken at checkout.
type Item struct {
	RestaurantID string          `json:"restaurantId"`
	MenuItemID   string          `json:"menuItemId"`
	Name         string          `json:"name"`
	Image        string          `json:"image"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unitPrice"`
	Size         *menu.Option    `json:"size,omitempty"`
	AddOns       []menu.Option   `json:"addOns,omitempty"`
}

// Priced returns the pricing view of the item.
func (i Item) Priced() pricing.Line {
	return pricing.Line{
		ID:        i.MenuItemID,
		UnitPrice: i.UnitPrice,
		Size:      i.Size,
		AddOns:    i.AddOns,
		Quantity:  i.Quantity,
	}
}

// Order is an immutable record of a checkout. Only Status and Rating
// change after creation.
type Order struct {
	ID          string
	UserID      string
	User        UserSnapshot
	Items       []Item
	TotalAmount decimal.Decimal
	CouponID    string
	Status      Status
	Rating      *int
	OrderDate   time.Time
}

// HasRestaurant reports whether any item belongs to restaurantID.
func (o *Order) HasRestaurant(restaurantID string) bool {
	for _, it := range o.Items {
		if it.RestaurantID == restaurantID {
			return true
		}
	}
	return false
}

// RestaurantIDs returns the distinct restaurants in item order.
func (o *Order) RestaurantIDs() []string {
	seen := make(map[string]struct{}, len(o.Items))
	var ids []string
	for _, it := range o.Items {
		if _, ok := seen[it.RestaurantID]; ok {
			continue
		}
		seen[it.RestaurantID] = struct{}{}
		ids = append(ids, it.RestaurantID)
	}
	return ids
}

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	// UpdateStatus moves the order from one status to another. It returns
	// ErrConcurrentUpdate when the stored status is no longer from.
	UpdateStatus(ctx context.Context, id string, from, to Status) error
	// Rate sets the order rating once and folds it into the running
	// average of the restaurant, atomically. It returns ErrAlreadyRated
	// when the order already has a rating.
	Rate(ctx context.Context, orderID, restaurantID string, rating int) (*restaurant.Restaurant, error)
}

