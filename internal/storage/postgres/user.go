package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/food-orders/internal/domain/user"
)

const (
	getUserSQL = `SELECT id, name, email, phone, address FROM users WHERE id = $1`

	upsertUserSQL = `INSERT INTO users (id, name, email, phone, address)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, email = EXCLUDED.email,
			phone = EXCLUDED.phone, address = EXCLUDED.address`
)

var _ user.Repository = (*UserRepository)(nil)

// UserRepository implements user.Repository backed by PostgreSQL.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a UserRepository that uses the given pool.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// GetByID returns the user or user.ErrNotFound.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*user.User, error) {
	rows, err := r.pool.Query(ctx, getUserSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting user %q: %w", id, err)
	}

	u, err := pgx.CollectExactlyOneRow(rows, scanUser)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("getting user %q: %w", id, err)
	}
	return &u, nil
}

// Upsert creates or replaces a user profile.
func (r *UserRepository) Upsert(ctx context.Context, u *user.User) error {
	addr, err := json.Marshal(u.Address)
	if err != nil {
		return fmt.Errorf("marshaling address: %w", err)
	}
	if _, err := r.pool.Exec(ctx, upsertUserSQL, u.ID, u.Name, u.Email, u.Phone, addr); err != nil {
		return fmt.Errorf("upserting user %q: %w", u.ID, err)
	}
	return nil
}

func scanUser(row pgx.CollectableRow) (user.User, error) {
	var (
		u    user.User
		addr []byte
	)
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &addr); err != nil {
		return u, err
	}
	if err := json.Unmarshal(addr, &u.Address); err != nil {
		return u, fmt.Errorf("unmarshaling address: %w", err)
	}
	return u, nil
}
