package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/xenking/food-orders/internal/domain/menu"
	"github.com/xenking/food-orders/internal/domain/order"
	"github.com/xenking/food-orders/internal/domain/user"
)

type placeOrderRequest struct {
	UserID         string           `json:"userId"`
	CouponDiscount *decimal.Decimal `json:"couponDiscount"`
	Coupon         string           `json:"coupon"`
}

type rateOrderRequest struct {
	Rating       int    `json:"rating"`
	RestaurantID string `json:"restaurantId" binding:"required"`
}

type updateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type optionResponse struct {
	Name  string `json:"name"`
	Price string `json:"price"`
}

type orderItemResponse struct {
	RestaurantID string           `json:"restaurantId"`
	MenuItemID   string           `json:"menuItemId"`
	Name         string           `json:"name"`
	Image        string           `json:"image"`
	Quantity     int              `json:"quantity"`
	UnitPrice    string           `json:"unitPrice"`
	Size         *optionResponse  `json:"size,omitempty"`
	AddOns       []optionResponse `json:"addOns"`
	LineTotal    string           `json:"lineTotal"`
}

type userResponse struct {
	ID      string       `json:"id"`
	Name    string       `json:"name"`
	Email   string       `json:"email"`
	Phone   string       `json:"phone"`
	Address user.Address `json:"address"`
}

type orderResponse struct {
	ID          string              `json:"id"`
	UserID      string              `json:"userId"`
	User        userResponse        `json:"user"`
	Items       []orderItemResponse `json:"items"`
	TotalAmount string              `json:"totalAmount"`
	CouponID    string              `json:"couponId,omitempty"`
	Status      string              `json:"status"`
	Rating      *int                `json:"rating,omitempty"`
	OrderDate   time.Time           `json:"orderDate"`
}

type restaurantRatingResponse struct {
	ID              string `json:"id"`
	Rating          string `json:"rating"`
	NumberOfRatings int    `json:"numberOfRatings"`
}

type rateOrderResponse struct {
	Order      orderResponse            `json:"order"`
	Restaurant restaurantRatingResponse `json:"restaurant"`
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func optionsResponse(opts []menu.Option) []optionResponse {
	out := make([]optionResponse, len(opts))
	for i, o := range opts {
		out[i] = optionResponse{Name: o.Name, Price: money(o.Price)}
	}
	return out
}

func (h *Handler) orderToResponse(o *order.Order) orderResponse {
	items := make([]orderItemResponse, len(o.Items))
	for i, it := range o.Items {
		r := orderItemResponse{
			RestaurantID: it.RestaurantID,
			MenuItemID:   it.MenuItemID,
			Name:         it.Name,
			Image:        h.imageURL(it.Image),
			Quantity:     it.Quantity,
			UnitPrice:    money(it.UnitPrice),
			AddOns:       optionsResponse(it.AddOns),
			LineTotal:    money(it.Priced().Total()),
		}
		if it.Size != nil {
			r.Size = &optionResponse{Name: it.Size.Name, Price: money(it.Size.Price)}
		}
		items[i] = r
	}

	return orderResponse{
		ID:     o.ID,
		UserID: o.UserID,
		User: userResponse{
			ID:      o.User.ID,
			Name:    o.User.Name,
			Email:   o.User.Email,
			Phone:   o.User.Phone,
			Address: o.User.Address,
		},
		Items:       items,
		TotalAmount: money(o.TotalAmount),
		CouponID:    o.CouponID,
		Status:      string(o.Status),
		Rating:      o.Rating,
		OrderDate:   o.OrderDate,
	}
}

// PlaceOrder checks out the cart of the user in the request body. An
// authenticated non-admin caller may only check out their own cart.
func (h *Handler) PlaceOrder(c *gin.Context) {
	var req placeOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	if p, ok := PrincipalFrom(c); ok {
		if req.UserID == "" {
			req.UserID = p.UserID
		}
		if !canAccess(p, req.UserID) {
			c.AbortWithStatusJSON(http.StatusForbidden, errorResponse{Error: "forbidden"})
			return
		}
	}

	in := order.PlaceOrderRequest{UserID: req.UserID, CouponID: req.Coupon}
	if req.CouponDiscount != nil {
		in.CouponDiscount = decimal.NewNullDecimal(*req.CouponDiscount)
	}

	o, err := h.orders.PlaceOrder(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, h.orderToResponse(o))
}

// GetOrder returns an order visible to the caller.
func (h *Handler) GetOrder(c *gin.Context) {
	o, err := h.orders.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	p, _ := PrincipalFrom(c)
	if !canAccess(p, o.UserID) {
		// Hide orders of other users.
		writeError(c, order.ErrNotFound)
		return
	}
	c.JSON(http.StatusOK, h.orderToResponse(o))
}

// UpdateOrderStatus moves an order along its lifecycle.
func (h *Handler) UpdateOrderStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	next, err := order.ParseStatus(req.Status)
	if err != nil {
		writeError(c, err)
		return
	}

	o, err := h.orders.UpdateStatus(c.Request.Context(), c.Param("id"), next)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.orderToResponse(o))
}

// RateOrder rates a completed order of the caller.
func (h *Handler) RateOrder(c *gin.Context) {
	var req rateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	ctx := c.Request.Context()
	orderID := c.Param("id")

	o, err := h.orders.Get(ctx, orderID)
	if err != nil {
		writeError(c, err)
		return
	}
	p, _ := PrincipalFrom(c)
	if !canAccess(p, o.UserID) {
		writeError(c, order.ErrNotFound)
		return
	}

	res, err := h.orders.Rate(ctx, orderID, req.RestaurantID, req.Rating)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rateOrderResponse{
		Order: h.orderToResponse(res.Order),
		Restaurant: restaurantRatingResponse{
			ID:              res.Restaurant.ID,
			Rating:          res.Restaurant.Rating.StringFixed(2),
			NumberOfRatings: res.Restaurant.NumberOfRatings,
		},
	})
}
