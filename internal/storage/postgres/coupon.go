package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/food-orders/internal/domain/coupon"
)

const (
	getCouponByCodeSQL = `SELECT id, code, discount_percentage, min_orders, expires_at, used
		FROM coupons WHERE UPPER(code) = UPPER($1)`

	attachCouponSQL = `INSERT INTO user_coupons (user_id, coupon_id) VALUES ($1, $2)
		ON CONFLICT (user_id, coupon_id) DO NOTHING`

	markCouponUsedSQL = `UPDATE coupons SET used = TRUE WHERE id = $1 AND NOT used`

	upsertCouponSQL = `INSERT INTO coupons (id, code, discount_percentage, min_orders, expires_at, used)
		VALUES ($1, $2, $3, $4, $5, FALSE)
		ON CONFLICT (code) DO UPDATE SET
			discount_percentage = EXCLUDED.discount_percentage,
			min_orders = EXCLUDED.min_orders,
			expires_at = EXCLUDED.expires_at`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode looks up a coupon by its code (case-insensitive).
// Returns coupon.ErrInvalidCode when no coupon matches.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, getCouponByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrInvalidCode
		}
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}
	return &c, nil
}

// Redeem attaches the coupon to the user and flags it as used. Both writes
// are conditional single statements in one transaction.
func (r *CouponRepository) Redeem(ctx context.Context, couponID, userID string) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, attachCouponSQL, userID, couponID); err != nil {
			return fmt.Errorf("attaching coupon %q to %q: %w", couponID, userID, err)
		}
		if _, err := tx.Exec(ctx, markCouponUsedSQL, couponID); err != nil {
			return fmt.Errorf("marking coupon %q used: %w", couponID, err)
		}
		return nil
	})
}

// Upsert inserts a coupon or refreshes the terms of an existing code.
func (r *CouponRepository) Upsert(ctx context.Context, c *coupon.Coupon) error {
	_, err := r.pool.Exec(ctx, upsertCouponSQL,
		c.ID, c.Code, c.DiscountPercentage, c.MinOrders, c.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("upserting coupon %q: %w", c.Code, err)
	}
	return nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c         coupon.Coupon
		minOrders int32
	)
	err := row.Scan(&c.ID, &c.Code, &c.DiscountPercentage, &minOrders, &c.ExpiresAt, &c.Used)
	c.MinOrders = int(minOrders)
	return c, err
}
