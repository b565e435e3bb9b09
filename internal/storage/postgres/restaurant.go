package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/food-orders/internal/domain/restaurant"
)

const (
	getRestaurantSQL = `SELECT id, name, contact, rating, number_of_ratings FROM restaurants WHERE id = $1`

	upsertRestaurantSQL = `INSERT INTO restaurants (id, name, contact, rating, number_of_ratings)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, contact = EXCLUDED.contact`
)

var _ restaurant.Repository = (*RestaurantRepository)(nil)

// RestaurantRepository implements restaurant.Repository backed by PostgreSQL.
type RestaurantRepository struct {
	pool *pgxpool.Pool
}

// NewRestaurantRepository returns a RestaurantRepository that uses the given pool.
func NewRestaurantRepository(pool *pgxpool.Pool) *RestaurantRepository {
	return &RestaurantRepository{pool: pool}
}

// GetByID returns the restaurant or restaurant.ErrNotFound.
func (r *RestaurantRepository) GetByID(ctx context.Context, id string) (*restaurant.Restaurant, error) {
	rows, err := r.pool.Query(ctx, getRestaurantSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting restaurant %q: %w", id, err)
	}

	rest, err := pgx.CollectExactlyOneRow(rows, scanRestaurant)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, restaurant.ErrNotFound
		}
		return nil, fmt.Errorf("getting restaurant %q: %w", id, err)
	}
	return &rest, nil
}

// Upsert inserts the restaurant or updates its name and contact. Rating
// aggregates of an existing row are kept.
func (r *RestaurantRepository) Upsert(ctx context.Context, rest *restaurant.Restaurant) error {
	_, err := r.pool.Exec(ctx, upsertRestaurantSQL,
		rest.ID, rest.Name, rest.Contact, rest.Rating, rest.NumberOfRatings,
	)
	if err != nil {
		return fmt.Errorf("upserting restaurant %q: %w", rest.ID, err)
	}
	return nil
}

func scanRestaurant(row pgx.CollectableRow) (restaurant.Restaurant, error) {
	var (
		rest  restaurant.Restaurant
		count int32
	)
	err := row.Scan(&rest.ID, &rest.Name, &rest.Contact, &rest.Rating, &count)
	rest.NumberOfRatings = int(count)
	return rest, err
}
