package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/food-orders/internal/domain/menu"
)

const (
	menuItemColumns = `id, restaurant_id, name, image, price, is_offer, offer_price, sizes, add_ons`

	getMenuItemSQL = `SELECT ` + menuItemColumns + ` FROM menu_items WHERE id = $1`

	getMenuItemsSQL = `SELECT ` + menuItemColumns + ` FROM menu_items WHERE id = ANY($1)`

	upsertMenuItemSQL = `INSERT INTO menu_items (` + menuItemColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			restaurant_id = EXCLUDED.restaurant_id, name = EXCLUDED.name, image = EXCLUDED.image,
			price = EXCLUDED.price, is_offer = EXCLUDED.is_offer, offer_price = EXCLUDED.offer_price,
			sizes = EXCLUDED.sizes, add_ons = EXCLUDED.add_ons`
)

var _ menu.Repository = (*MenuRepository)(nil)

// MenuRepository implements menu.Repository backed by PostgreSQL.
type MenuRepository struct {
	pool *pgxpool.Pool
}

// NewMenuRepository returns a MenuRepository that uses the given pool.
func NewMenuRepository(pool *pgxpool.Pool) *MenuRepository {
	return &MenuRepository{pool: pool}
}

// GetByID returns the menu item or menu.ErrNotFound.
func (r *MenuRepository) GetByID(ctx context.Context, id string) (*menu.Item, error) {
	rows, err := r.pool.Query(ctx, getMenuItemSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting menu item %q: %w", id, err)
	}

	it, err := pgx.CollectExactlyOneRow(rows, scanMenuItem)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, menu.ErrNotFound
		}
		return nil, fmt.Errorf("getting menu item %q: %w", id, err)
	}
	return &it, nil
}

// GetByIDs returns the menu items matching ids in a single query. Missing
// ids are skipped.
func (r *MenuRepository) GetByIDs(ctx context.Context, ids []string) ([]menu.Item, error) {
	rows, err := r.pool.Query(ctx, getMenuItemsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting menu items by ids: %w", err)
	}

	items, err := pgx.CollectRows(rows, scanMenuItem)
	if err != nil {
		return nil, fmt.Errorf("getting menu items by ids: %w", err)
	}
	return items, nil
}

// Upsert inserts or replaces a menu item.
func (r *MenuRepository) Upsert(ctx context.Context, it *menu.Item) error {
	sizes, err := json.Marshal(optionsOrEmpty(it.Sizes))
	if err != nil {
		return fmt.Errorf("marshaling sizes: %w", err)
	}
	addOns, err := json.Marshal(optionsOrEmpty(it.AddOns))
	if err != nil {
		return fmt.Errorf("marshaling add-ons: %w", err)
	}

	_, err = r.pool.Exec(ctx, upsertMenuItemSQL,
		it.ID, it.RestaurantID, it.Name, it.Image, it.Price, it.IsOffer, it.OfferPrice, sizes, addOns,
	)
	if err != nil {
		return fmt.Errorf("upserting menu item %q: %w", it.ID, err)
	}
	return nil
}

func optionsOrEmpty(opts []menu.Option) []menu.Option {
	if opts == nil {
		return []menu.Option{}
	}
	return opts
}

func scanMenuItem(row pgx.CollectableRow) (menu.Item, error) {
	var (
		it         menu.Item
		offerPrice decimal.NullDecimal
		sizes      []byte
		addOns     []byte
	)
	if err := row.Scan(
		&it.ID, &it.RestaurantID, &it.Name, &it.Image, &it.Price,
		&it.IsOffer, &offerPrice, &sizes, &addOns,
	); err != nil {
		return it, err
	}
	it.OfferPrice = offerPrice
	if err := json.Unmarshal(sizes, &it.Sizes); err != nil {
		return it, fmt.Errorf("unmarshaling sizes: %w", err)
	}
	if err := json.Unmarshal(addOns, &it.AddOns); err != nil {
		return it, fmt.Errorf("unmarshaling add-ons: %w", err)
	}
	return it, nil
}
