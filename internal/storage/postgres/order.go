package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/food-orders/internal/domain/coupon"
	"github.com/xenking/food-orders/internal/domain/order"
	"github.com/xenking/food-orders/internal/domain/restaurant"
)

const (
	createOrderSQL = `INSERT INTO orders
		(id, user_id, user_snapshot, items, total_amount, coupon_id, status, order_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	getOrderSQL = `SELECT id, user_id, user_snapshot, items, total_amount, coupon_id, status, rating, order_date
		FROM orders WHERE id = $1`

	updateOrderStatusSQL = `UPDATE orders SET status = $3 WHERE id = $1 AND status = $2`

	rateOrderSQL = `UPDATE orders SET rating = $2
		WHERE id = $1 AND rating IS NULL AND status = 'Completed'`

	lockRestaurantSQL = `SELECT id, name, contact, rating, number_of_ratings
		FROM restaurants WHERE id = $1 FOR UPDATE`

	updateRestaurantRatingSQL = `UPDATE restaurants SET rating = $2, number_of_ratings = $3 WHERE id = $1`

	countOrdersByUserSQL = `SELECT COUNT(*) FROM orders WHERE user_id = $1`

	orderWithCouponSQL = `SELECT EXISTS (SELECT 1 FROM orders WHERE user_id = $1 AND coupon_id = $2)`
)

var (
	_ order.Repository    = (*OrderRepository)(nil)
	_ coupon.OrderHistory = (*OrderRepository)(nil)
)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order. The user snapshot and items are serialized
// to JSON for storage in JSONB columns.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	userJSON, err := json.Marshal(o.User)
	if err != nil {
		return fmt.Errorf("marshaling user snapshot: %w", err)
	}
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshaling order items: %w", err)
	}

	_, err = r.pool.Exec(ctx, createOrderSQL,
		o.ID, o.UserID, userJSON, itemsJSON, o.TotalAmount,
		nullIfEmpty(o.CouponID), string(o.Status), o.OrderDate,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

// GetByID returns the order or order.ErrNotFound.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	return &o, nil
}

// UpdateStatus performs a guarded status transition.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, from, to order.Status) error {
	tag, err := r.pool.Exec(ctx, updateOrderStatusSQL, id, string(from), string(to))
	if err != nil {
		return fmt.Errorf("updating order %q status: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrConcurrentUpdate
	}
	return nil
}

// Rate stores the order rating and folds it into the restaurant average in
// one transaction. The restaurant row is locked while the new average is
// computed so concurrent ratings do not lose updates.
func (r *OrderRepository) Rate(ctx context.Context, orderID, restaurantID string, rating int) (*restaurant.Restaurant, error) {
	var updated restaurant.Restaurant
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, rateOrderSQL, orderID, rating)
		if err != nil {
			return fmt.Errorf("rating order %q: %w", orderID, err)
		}
		if tag.RowsAffected() == 0 {
			return order.ErrAlreadyRated
		}

		rows, err := tx.Query(ctx, lockRestaurantSQL, restaurantID)
		if err != nil {
			return fmt.Errorf("locking restaurant %q: %w", restaurantID, err)
		}
		rest, err := pgx.CollectExactlyOneRow(rows, scanRestaurant)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return restaurant.ErrNotFound
			}
			return fmt.Errorf("locking restaurant %q: %w", restaurantID, err)
		}

		rest.Rating, rest.NumberOfRatings = restaurant.AddRating(rest.Rating, rest.NumberOfRatings, rating)
		if _, err := tx.Exec(ctx, updateRestaurantRatingSQL, rest.ID, rest.Rating, rest.NumberOfRatings); err != nil {
			return fmt.Errorf("updating restaurant %q rating: %w", restaurantID, err)
		}

		updated = rest
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// CountByUser returns the number of orders placed by the user.
func (r *OrderRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, countOrdersByUserSQL, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting orders of %q: %w", userID, err)
	}
	return n, nil
}

// ExistsWithCoupon reports whether the user has an order with the coupon.
func (r *OrderRepository) ExistsWithCoupon(ctx context.Context, userID, couponID string) (bool, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, orderWithCouponSQL, userID, couponID).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking coupon usage of %q: %w", userID, err)
	}
	return exists, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o         order.Order
		userJSON  []byte
		itemsJSON []byte
		total     decimal.Decimal
		couponID  *string
		status    string
		rating    *int16
		orderDate time.Time
	)
	if err := row.Scan(&o.ID, &o.UserID, &userJSON, &itemsJSON, &total, &couponID, &status, &rating, &orderDate); err != nil {
		return o, err
	}
	if err := json.Unmarshal(userJSON, &o.User); err != nil {
		return o, fmt.Errorf("unmarshaling user snapshot: %w", err)
	}
	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return o, fmt.Errorf("unmarshaling order items: %w", err)
	}
	o.TotalAmount = total
	o.CouponID = deref(couponID)
	o.Status = order.Status(status)
	if rating != nil {
		v := int(*rating)
		o.Rating = &v
	}
	o.OrderDate = orderDate
	return o, nil
}
