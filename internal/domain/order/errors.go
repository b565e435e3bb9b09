package order

import (
	"fmt"
	"strings"

	"github.com/go-faster/errors"
)

var (
	// ErrUserIDRequired is returned when checkout has no user id.
	ErrUserIDRequired = errors.New("userId is required")
	// ErrInvalidDiscount is returned for discounts outside [0, 100].
	ErrInvalidDiscount = errors.New("couponDiscount must be between 0 and 100")
	// ErrIncompleteAddress is matched by *IncompleteAddressError.
	ErrIncompleteAddress = errors.New("please complete your address before placing an order")
	// ErrNotFound is returned when an order does not exist.
	ErrNotFound = errors.New("order not found")
	// ErrInvalidRating is returned for ratings outside 1..5.
	ErrInvalidRating = errors.New("rating must be an integer between 1 and 5")
	// ErrAlreadyRated is returned when the order already carries a rating.
	ErrAlreadyRated = errors.New("order already rated")
	// ErrNotRatable is returned when the order is not completed.
	ErrNotRatable = errors.New("only completed orders can be rated")
	// ErrRestaurantNotInOrder is returned when the rated restaurant did not
	// supply any item of the order.
	ErrRestaurantNotInOrder = errors.New("restaurant is not part of this order")
	// ErrConcurrentUpdate is returned when the order changed between read
	// and write.
	ErrConcurrentUpdate = errors.New("order was modified concurrently")
)

// IncompleteAddressError lists the address fields the user must fill in.
type IncompleteAddressError struct {
	Missing []string
}

func (e *IncompleteAddressError) Error() string {
	return fmt.Sprintf("%s (missing: %s)", ErrIncompleteAddress, strings.Join(e.Missing, ", "))
}

func (e *IncompleteAddressError) Unwrap() error {
	return ErrIncompleteAddress
}
