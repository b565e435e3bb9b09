package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xenking/food-orders/internal/domain/cart"
	"github.com/xenking/food-orders/internal/domain/pricing"
)

type addToCartRequest struct {
	Items []struct {
		MenuItemID string   `json:"menuItemId" binding:"required"`
		Quantity   int      `json:"quantity"`
		Size       string   `json:"size"`
		AddOns     []string `json:"addOns"`
	} `json:"items" binding:"required,dive"`
}

type cartLineResponse struct {
	RestaurantID string           `json:"restaurantId"`
	MenuItemID   string           `json:"menuItemId"`
	Quantity     int              `json:"quantity"`
	UnitPrice    string           `json:"unitPrice"`
	Size         *optionResponse  `json:"size,omitempty"`
	AddOns       []optionResponse `json:"addOns"`
	LineTotal    string           `json:"lineTotal"`
}

type cartResponse struct {
	Items    []cartLineResponse `json:"items"`
	Subtotal string             `json:"subtotal"`
}

func cartToResponse(lines []cart.Line) cartResponse {
	items := make([]cartLineResponse, len(lines))
	priced := make([]pricing.Line, len(lines))
	for i, l := range lines {
		priced[i] = l.Priced()
		r := cartLineResponse{
			RestaurantID: l.RestaurantID,
			MenuItemID:   l.MenuItemID,
			Quantity:     l.Quantity,
			UnitPrice:    money(l.UnitPrice),
			AddOns:       optionsResponse(l.AddOns),
			LineTotal:    money(priced[i].Total()),
		}
		if l.Size != nil {
			r.Size = &optionResponse{Name: l.Size.Name, Price: money(l.Size.Price)}
		}
		items[i] = r
	}
	return cartResponse{Items: items, Subtotal: money(pricing.Subtotal(priced))}
}

// AddToCart stages items for the caller as a new cart document.
func (h *Handler) AddToCart(c *gin.Context) {
	var req addToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	items := make([]cart.AddItem, len(req.Items))
	for i, it := range req.Items {
		items[i] = cart.AddItem{
			MenuItemID: it.MenuItemID,
			Quantity:   it.Quantity,
			Size:       it.Size,
			AddOns:     it.AddOns,
		}
	}

	p, _ := PrincipalFrom(c)
	created, err := h.carts.Add(c.Request.Context(), p.UserID, items)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, cartToResponse(created.Items))
}

// GetCart returns the flattened cart of the caller.
func (h *Handler) GetCart(c *gin.Context) {
	p, _ := PrincipalFrom(c)
	lines, err := h.carts.Get(c.Request.Context(), p.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cartToResponse(lines))
}
