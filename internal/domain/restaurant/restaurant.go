package restaurant

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested restaurant does not exist.
var ErrNotFound = errors.New("restaurant not found")

// Restaurant is the read model of a restaurant with its aggregate rating.
type Restaurant struct {
	ID              string
	Name            string
	Contact         string
	Rating          decimal.Decimal
	NumberOfRatings int
}

// AddRating folds one more rating into the running average:
// newAvg = (avg*count + rating) / (count + 1).
func AddRating(avg decimal.Decimal, count, rating int) (decimal.Decimal, int) {
	n := decimal.NewFromInt(int64(count))
	sum := avg.Mul(n).Add(decimal.NewFromInt(int64(rating)))
	return sum.Div(n.Add(decimal.NewFromInt(1))), count + 1
}

// Repository provides lookups of restaurants.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Restaurant, error)
}
