package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/food-orders/internal/domain/pricing"
	"github.com/xenking/food-orders/internal/domain/user"
)

// Result is the outcome of a successful coupon application.
type Result struct {
	CouponID           string
	Code               string
	DiscountPercentage decimal.Decimal
	FinalTotal         decimal.Decimal
}

// Validator checks coupon eligibility for a user.
type Validator struct {
	coupons Repository
	users   user.Repository
	orders  OrderHistory
	now     func() time.Time
}

// NewValidator creates a Validator.
func NewValidator(coupons Repository, users user.Repository, orders OrderHistory) *Validator {
	return &Validator{
		coupons: coupons,
		users:   users,
		orders:  orders,
		now:     time.Now,
	}
}

// Apply validates code for userID and computes the discounted total of
// subtotal. Checks run in order: code exists, not expired, user exists, not
// used by this user before, enough prior orders. On success the coupon is
// recorded against the user.
func (v *Validator) Apply(ctx context.Context, code, userID string, subtotal decimal.Decimal) (*Result, error) {
	if subtotal.IsNegative() {
		return nil, ErrInvalidSubtotal
	}

	c, err := v.coupons.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrInvalidCode) {
			return nil, ErrInvalidCode
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}

	if c.Expired(v.now()) {
		return nil, ErrExpired
	}

	if _, err := v.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, user.ErrNotFound
		}
		return nil, errors.Wrap(err, "get user")
	}

	used, err := v.orders.ExistsWithCoupon(ctx, userID, c.ID)
	if err != nil {
		return nil, errors.Wrap(err, "check coupon usage")
	}
	if used {
		return nil, ErrAlreadyUsed
	}

	count, err := v.orders.CountByUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "count orders")
	}
	if count < c.MinOrders {
		return nil, &NotEligibleError{Required: c.MinOrders, Have: count}
	}

	if err := v.coupons.Redeem(ctx, c.ID, userID); err != nil {
		return nil, errors.Wrap(err, "redeem coupon")
	}

	return &Result{
		CouponID:           c.ID,
		Code:               c.Code,
		DiscountPercentage: c.DiscountPercentage,
		FinalTotal:         pricing.ApplyDiscount(subtotal, c.DiscountPercentage),
	}, nil
}
