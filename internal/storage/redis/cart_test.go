package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/food-orders/internal/domain/cart"
)

func newTestRepository(t *testing.T) *CartRepository {
	t.Helper()

	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL is not set")
	}
	client, err := NewClient(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return NewCartRepository(client, time.Minute)
}

func TestCartRepository_Consume(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	userID := "test-" + time.Now().Format(time.RFC3339Nano)

	add := func(id, item string) {
		require.NoError(t, repo.Add(ctx, &cart.Cart{
			ID:     id,
			UserID: userID,
			Items:  []cart.Line{{MenuItemID: item, Quantity: 1}},
		}))
	}

	add("c1", "m1")
	add("c2", "m2")
	read, err := repo.ListByUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, read, 2)

	add("c3", "m3")
	require.NoError(t, repo.Consume(ctx, userID, len(read)))

	left, err := repo.ListByUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "c3", left[0].ID)

	require.NoError(t, repo.Consume(ctx, userID, 5))
	left, err = repo.ListByUser(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, left)
}
