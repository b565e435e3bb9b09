// Package notification defines domain events delivered to restaurant
// sessions and the ephemeral records kept for the polling read path.
package notification

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a notification does not exist or expired.
var ErrNotFound = errors.New("notification not found")

// Type classifies a notification.
type Type string

const (
	TypeNewUser       Type = "NEW_USER"
	TypeNewRestaurant Type = "NEW_RESTAURANT"
	TypeNewOrder      Type = "NEW_ORDER"
	TypeNewMeal       Type = "NEW_MEAL"
)

// Action is the kind of change that produced a notification.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Event names used on the real-time channel.
const (
	EventNewOrder    = "newOrder"
	EventNewUser     = "newUser"
	EventOrderStatus = "orderStatus"
)

// Item is an order line as seen by a restaurant.
type Item struct {
	RestaurantID string          `json:"restaurantId"`
	MenuItemID   string          `json:"menuItemId"`
	Name         string          `json:"name"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unitPrice"`
	Size         string          `json:"size,omitempty"`
	AddOns       []string        `json:"addOns,omitempty"`
}

// Payload is the body of an event. Unset fields are omitted on the wire.
type Payload struct {
	MessageType Type   `json:"messageType"`
	Action      Action `json:"action,omitempty"`
	Message     string `json:"message,omitempty"`
	OrderID     string `json:"orderId,omitempty"`
	UserID      string `json:"userId,omitempty"`
	Status      string `json:"status,omitempty"`
	// RestaurantID is the restaurant of the first order item. Orders may
	// span restaurants, see RestaurantIDs.
	RestaurantID  string   `json:"restaurantId,omitempty"`
	RestaurantIDs []string `json:"restaurantIds,omitempty"`
	Items         []Item   `json:"items,omitempty"`
}

// Notification is a stored event that expires after a TTL.
type Notification struct {
	ID        string
	Event     string
	Type      Type
	Action    Action
	Message   string
	Payload   Payload
	CreatedAt time.Time
	ExpiresAt time.Time
	SeenAt    *time.Time
}

// Publisher delivers events to connected restaurant sessions.
//
// Broadcast never blocks on slow receivers and never fails: delivery is
// best effort.
type Publisher interface {
	Broadcast(ctx context.Context, event string, p Payload)
}

// Repository stores notification records.
type Repository interface {
	Create(ctx context.Context, n *Notification) error
	// ListActive returns records not expired at now, newest first.
	ListActive(ctx context.Context, now time.Time, limit int) ([]Notification, error)
	// MarkSeen sets the seen time once. Marking a seen record again keeps
	// the first time.
	MarkSeen(ctx context.Context, id string, at time.Time) (*Notification, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
