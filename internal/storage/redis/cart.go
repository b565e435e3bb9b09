// Package redis stores carts in Redis.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xenking/food-orders/internal/domain/cart"
)

const cartKeyPrefix = "cart:"

// NewClient connects to the Redis server at url and verifies the
// connection.
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return client, nil
}

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository keeps each user's cart documents in a Redis list under
// cart:<userID>, one JSON document per element in insertion order.
type CartRepository struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewCartRepository returns a CartRepository. A non-zero ttl expires idle
// carts; the expiry is refreshed on every add.
func NewCartRepository(client redis.UniversalClient, ttl time.Duration) *CartRepository {
	return &CartRepository{client: client, ttl: ttl}
}

func cartKey(userID string) string {
	return cartKeyPrefix + userID
}

// ListByUser returns the user's cart documents in insertion order.
func (r *CartRepository) ListByUser(ctx context.Context, userID string) ([]cart.Cart, error) {
	raw, err := r.client.LRange(ctx, cartKey(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("listing cart of %q: %w", userID, err)
	}

	carts := make([]cart.Cart, 0, len(raw))
	for _, doc := range raw {
		var c cart.Cart
		if err := json.Unmarshal([]byte(doc), &c); err != nil {
			return nil, fmt.Errorf("decoding cart of %q: %w", userID, err)
		}
		carts = append(carts, c)
	}
	return carts, nil
}

// Add appends a new document to the user's cart.
func (r *CartRepository) Add(ctx context.Context, c *cart.Cart) error {
	doc, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding cart: %w", err)
	}

	key := cartKey(c.UserID)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, doc)
		if r.ttl > 0 {
			pipe.Expire(ctx, key, r.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("adding cart for %q: %w", c.UserID, err)
	}
	return nil
}

// Consume trims the first n documents off the user's cart list. The list
// only grows at the tail, so documents pushed after a read survive. Redis
// drops the key once the list is empty.
func (r *CartRepository) Consume(ctx context.Context, userID string, n int) error {
	if err := r.client.LTrim(ctx, cartKey(userID), int64(n), -1).Err(); err != nil {
		return fmt.Errorf("consuming cart of %q: %w", userID, err)
	}
	return nil
}
