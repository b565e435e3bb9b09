package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/xenking/food-orders/internal/domain/cart"
	"github.com/xenking/food-orders/internal/domain/coupon"
	"github.com/xenking/food-orders/internal/domain/menu"
	"github.com/xenking/food-orders/internal/domain/notification"
	"github.com/xenking/food-orders/internal/domain/order"
	"github.com/xenking/food-orders/internal/domain/pricing"
	"github.com/xenking/food-orders/internal/domain/restaurant"
	"github.com/xenking/food-orders/internal/domain/user"
)

const internalErrorMessage = "internal error"

type errorResponse struct {
	Error string `json:"error"`
}

var sentinelStatus = []struct {
	err    error
	status int
}{
	{order.ErrUserIDRequired, http.StatusBadRequest},
	{order.ErrInvalidDiscount, http.StatusBadRequest},
	{order.ErrInvalidRating, http.StatusBadRequest},
	{order.ErrRestaurantNotInOrder, http.StatusBadRequest},
	{order.ErrUnknownStatus, http.StatusBadRequest},
	{order.ErrIncompleteAddress, http.StatusBadRequest},
	{cart.ErrEmptyCart, http.StatusBadRequest},
	{cart.ErrInvalidQuantity, http.StatusBadRequest},
	{cart.ErrNoItems, http.StatusBadRequest},
	{coupon.ErrExpired, http.StatusBadRequest},
	{coupon.ErrInvalidSubtotal, http.StatusBadRequest},

	{user.ErrNotFound, http.StatusNotFound},
	{coupon.ErrInvalidCode, http.StatusNotFound},
	{order.ErrNotFound, http.StatusNotFound},
	{restaurant.ErrNotFound, http.StatusNotFound},
	{menu.ErrNotFound, http.StatusNotFound},
	{notification.ErrNotFound, http.StatusNotFound},

	{coupon.ErrAlreadyUsed, http.StatusConflict},
	{order.ErrAlreadyRated, http.StatusConflict},
	{order.ErrNotRatable, http.StatusConflict},
	{order.ErrConcurrentUpdate, http.StatusConflict},
}

// mapError converts domain errors to a status and client-facing message.
// Unknown errors map to 500 without details.
func mapError(err error) (int, string) {
	var addrErr *order.IncompleteAddressError
	if errors.As(err, &addrErr) {
		return http.StatusBadRequest, addrErr.Error()
	}
	var optErr *cart.UnknownOptionError
	if errors.As(err, &optErr) {
		return http.StatusBadRequest, optErr.Error()
	}
	var lineErr *pricing.InvalidLineError
	if errors.As(err, &lineErr) {
		return http.StatusBadRequest, lineErr.Error()
	}
	var eligErr *coupon.NotEligibleError
	if errors.As(err, &eligErr) {
		return http.StatusBadRequest, eligErr.Error()
	}
	var trErr *order.InvalidTransitionError
	if errors.As(err, &trErr) {
		return http.StatusConflict, trErr.Error()
	}

	for _, s := range sentinelStatus {
		if errors.Is(err, s.err) {
			return s.status, s.err.Error()
		}
	}
	return http.StatusInternalServerError, internalErrorMessage
}

// writeError aborts the request with the mapped error. Server errors are
// logged with their full chain.
func writeError(c *gin.Context, err error) {
	status, msg := mapError(err)
	if status >= http.StatusInternalServerError {
		zctx.From(c.Request.Context()).Error("Request failed",
			zap.Error(err),
			zap.String("route", c.FullPath()),
		)
	}
	c.AbortWithStatusJSON(status, errorResponse{Error: msg})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: msg})
}

// bindError rejects a request whose body could not be bound.
func bindError(c *gin.Context, err error) {
	badRequest(c, bindErrorMessage(err))
}

// bindErrorMessage names the JSON field that failed to bind when it is
// known.
func bindErrorMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		if fe.Tag() == "required" {
			return fieldPath(fe) + " is required"
		}
		return fieldPath(fe) + " is invalid"
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return typeErr.Field + " must be " + kindName(typeErr.Type)
	}
	if errors.Is(err, io.EOF) {
		return "request body is required"
	}
	return "invalid request body"
}

// fieldPath drops the request type name from the validator namespace, so
// "addToCartRequest.items[0].menuItemId" becomes "items[0].menuItemId".
func fieldPath(fe validator.FieldError) string {
	if _, path, ok := strings.Cut(fe.Namespace(), "."); ok {
		return path
	}
	return fe.Field()
}

func kindName(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "an integer"
	case reflect.Float32, reflect.Float64:
		return "a number"
	case reflect.String:
		return "a string"
	case reflect.Bool:
		return "a boolean"
	case reflect.Slice, reflect.Array:
		return "an array"
	default:
		return "an object"
	}
}

var jsonFieldNames sync.Once

// useJSONFieldNames makes validation errors report JSON field names.
func useJSONFieldNames() {
	jsonFieldNames.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
}
