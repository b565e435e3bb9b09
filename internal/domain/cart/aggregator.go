package cart

import (
	"context"

	"github.com/go-faster/errors"
)

// Aggregator loads a user's cart for checkout and removes it once the
// order is persisted.
type Aggregator struct {
	repo Repository
}

// NewAggregator creates an Aggregator over repo.
func NewAggregator(repo Repository) *Aggregator {
	return &Aggregator{repo: repo}
}

// Load returns the flattened lines of the user's cart, or ErrEmptyCart
// when there is nothing to check out.
func (a *Aggregator) Load(ctx context.Context, userID string) (*Contents, error) {
	carts, err := a.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list carts")
	}
	lines := Flatten(carts)
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}
	return &Contents{Lines: lines, Documents: len(carts)}, nil
}

// Clear deletes the first documents of the user's cart, as counted by a
// previous Load. Items added since then are kept for the next checkout.
func (a *Aggregator) Clear(ctx context.Context, userID string, documents int) error {
	if documents <= 0 {
		return nil
	}
	if err := a.repo.Consume(ctx, userID, documents); err != nil {
		return errors.Wrap(err, "consume carts")
	}
	return nil
}
