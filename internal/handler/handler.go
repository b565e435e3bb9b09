// Package handler exposes the ordering API over HTTP with gin.
package handler

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/xenking/food-orders/internal/domain/cart"
	"github.com/xenking/food-orders/internal/domain/coupon"
	"github.com/xenking/food-orders/internal/domain/notification"
	"github.com/xenking/food-orders/internal/domain/order"
	"github.com/xenking/food-orders/internal/domain/restaurant"
	"github.com/xenking/food-orders/pkg/httpmiddleware"
)

// OrderService is the order pipeline and lifecycle.
type OrderService interface {
	PlaceOrder(ctx context.Context, req order.PlaceOrderRequest) (*order.Order, error)
	Get(ctx context.Context, id string) (*order.Order, error)
	UpdateStatus(ctx context.Context, id string, next order.Status) (*order.Order, error)
	Rate(ctx context.Context, orderID, restaurantID string, rating int) (*order.RateResult, error)
}

// CartService stages items for checkout.
type CartService interface {
	Add(ctx context.Context, userID string, items []cart.AddItem) (*cart.Cart, error)
	Get(ctx context.Context, userID string) ([]cart.Line, error)
}

// CouponService validates and redeems coupons.
type CouponService interface {
	Apply(ctx context.Context, code, userID string, subtotal decimal.Decimal) (*coupon.Result, error)
}

// NotificationService serves stored notifications.
type NotificationService interface {
	List(ctx context.Context, limit int) ([]notification.Notification, error)
	MarkSeen(ctx context.Context, id string) (*notification.Notification, error)
}

// SessionEndpoint runs a realtime restaurant session on a request.
type SessionEndpoint interface {
	Serve(w http.ResponseWriter, r *http.Request, restaurantID string)
}

// CORSConfig holds cross-origin settings.
type CORSConfig struct {
	Origins          []string
	AllowCredentials bool
}

// HandlerConfig holds non-dependency configuration for the Handler.
type HandlerConfig struct {
	// ImageBaseURL is prepended to relative image paths in order responses.
	// When empty, image paths are returned as stored.
	ImageBaseURL string
	CORS         CORSConfig
}

// Handler serves the REST API and the realtime endpoint.
type Handler struct {
	orders        OrderService
	carts         CartService
	coupons       CouponService
	notifications NotificationService
	restaurants   restaurant.Repository
	sessions      SessionEndpoint
	auth          *Authenticator

	imageBaseURL string
	cors         CORSConfig
}

// Deps groups the services the Handler delegates to.
type Deps struct {
	Orders        OrderService
	Carts         CartService
	Coupons       CouponService
	Notifications NotificationService
	Restaurants   restaurant.Repository
	Sessions      SessionEndpoint
	Auth          *Authenticator
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(cfg HandlerConfig, deps Deps) *Handler {
	return &Handler{
		orders:        deps.Orders,
		carts:         deps.Carts,
		coupons:       deps.Coupons,
		notifications: deps.Notifications,
		restaurants:   deps.Restaurants,
		sessions:      deps.Sessions,
		auth:          deps.Auth,
		imageBaseURL:  cfg.ImageBaseURL,
		cors:          cfg.CORS,
	}
}

// Engine builds the gin engine with all routes.
func (h *Handler) Engine() *gin.Engine {
	useJSONFieldNames()

	r := gin.New()
	r.Use(recordRoute, corsMiddleware(h.cors))

	api := r.Group("/api", h.auth.Authenticate())
	{
		api.POST("/orders", h.PlaceOrder)
		api.GET("/orders/:id", RequirePrincipal(), h.GetOrder)
		api.PATCH("/orders/:id/status", RequireAdmin(), h.UpdateOrderStatus)
		api.POST("/orders/:id/rate", RequirePrincipal(), h.RateOrder)

		api.POST("/cart", RequirePrincipal(), h.AddToCart)
		api.GET("/cart", RequirePrincipal(), h.GetCart)

		api.POST("/coupons/apply", RequirePrincipal(), h.ApplyCoupon)

		api.GET("/notifications", RequireAdmin(), h.ListNotifications)
		api.POST("/notifications/:id/seen", RequireAdmin(), h.MarkNotificationSeen)
	}

	r.GET("/ws/restaurants/:restaurantId", h.RestaurantSession)

	return r
}

// recordRoute reports the matched route template to the surrounding
// net/http middleware and telemetry. Unmatched requests keep "unknown".
func recordRoute(c *gin.Context) {
	if route := c.FullPath(); route != "" {
		httpmiddleware.SetRoute(c.Request.Context(), c.Request.Method, route)
	}
	c.Next()
}

func corsMiddleware(cfg CORSConfig) gin.HandlerFunc {
	c := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           24 * time.Hour,
	}
	if len(cfg.Origins) == 0 || slices.Contains(cfg.Origins, "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = cfg.Origins
	}
	return cors.New(c)
}

// imageURL prefixes relative image paths with the configured base URL.
func (h *Handler) imageURL(path string) string {
	if h.imageBaseURL == "" || path == "" {
		return path
	}
	return h.imageBaseURL + path
}
