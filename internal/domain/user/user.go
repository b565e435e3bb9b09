package user

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when a requested user does not exist.
var ErrNotFound = errors.New("user not found")

// Address is a delivery address. Coordinates are pointers because zero is a
// valid latitude and longitude.
type Address struct {
	Name      string   `json:"name"`
	Lat       *float64 `json:"lat,omitempty"`
	Lng       *float64 `json:"lng,omitempty"`
	Building  string   `json:"building"`
	Floor     string   `json:"floor"`
	Apartment string   `json:"apartment"`
}

// Missing returns the names of the fields that must be filled before the
// address can be used for delivery.
func (a Address) Missing() []string {
	var missing []string
	if strings.TrimSpace(a.Name) == "" {
		missing = append(missing, "name")
	}
	if a.Lat == nil {
		missing = append(missing, "lat")
	}
	if a.Lng == nil {
		missing = append(missing, "lng")
	}
	if strings.TrimSpace(a.Building) == "" {
		missing = append(missing, "building")
	}
	if strings.TrimSpace(a.Floor) == "" {
		missing = append(missing, "floor")
	}
	if strings.TrimSpace(a.Apartment) == "" {
		missing = append(missing, "apartment")
	}
	return missing
}

// Complete reports whether every address field is populated.
func (a Address) Complete() bool {
	return len(a.Missing()) == 0
}

// Clone returns a deep copy so that later edits of the source do not leak
// into the copy.
func (a Address) Clone() Address {
	c := a
	if a.Lat != nil {
		lat := *a.Lat
		c.Lat = &lat
	}
	if a.Lng != nil {
		lng := *a.Lng
		c.Lng = &lng
	}
	return c
}

// User is a customer profile.
type User struct {
	ID      string
	Name    string
	Email   string
	Phone   string
	Address Address
}

// Repository provides lookups of users.
type Repository interface {
	GetByID(ctx context.Context, id string) (*User, error)
}
