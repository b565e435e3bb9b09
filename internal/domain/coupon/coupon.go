package coupon

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidCode is returned when no coupon has the given code.
	ErrInvalidCode = errors.New("invalid coupon code")
	// ErrExpired is returned when the coupon expiration date has passed.
	ErrExpired = errors.New("coupon expired")
	// ErrAlreadyUsed is returned when the user already placed an order
	// with this coupon.
	ErrAlreadyUsed = errors.New("coupon already used")
	// ErrInvalidSubtotal is returned for negative subtotals.
	ErrInvalidSubtotal = errors.New("subtotal must not be negative")
)

// NotEligibleError indicates the user has fewer prior orders than the
// coupon requires.
type NotEligibleError struct {
	Required int
	Have     int
}

func (e *NotEligibleError) Error() string {
	return fmt.Sprintf("coupon requires at least %d previous orders", e.Required)
}

// Coupon is a percentage discount redeemable once per user.
type Coupon struct {
	ID                 string
	Code               string
	DiscountPercentage decimal.Decimal
	MinOrders          int
	ExpiresAt          time.Time
	Used               bool
}

// Expired reports whether the coupon is past its expiration at now.
func (c *Coupon) Expired(now time.Time) bool {
	return c.ExpiresAt.Before(now)
}

// Repository provides coupon lookups and redemption bookkeeping.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Coupon, error)
	// Redeem attaches the coupon to the user and sets its usage flag.
	// Attaching an already attached coupon is a no-op.
	Redeem(ctx context.Context, couponID, userID string) error
}

// OrderHistory answers questions about a user's past orders.
type OrderHistory interface {
	CountByUser(ctx context.Context, userID string) (int, error)
	ExistsWithCoupon(ctx context.Context, userID, couponID string) (bool, error)
}
