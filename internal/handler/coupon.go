package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type applyCouponRequest struct {
	Code     string          `json:"code" binding:"required"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

type applyCouponResponse struct {
	CouponID           string `json:"couponId"`
	Code               string `json:"code"`
	DiscountPercentage string `json:"discountPercentage"`
	FinalTotal         string `json:"finalTotal"`
}

// ApplyCoupon validates a coupon for the caller and returns the discount to
// pass to checkout.
func (h *Handler) ApplyCoupon(c *gin.Context) {
	var req applyCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	p, _ := PrincipalFrom(c)
	res, err := h.coupons.Apply(c.Request.Context(), req.Code, p.UserID, req.Subtotal)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, applyCouponResponse{
		CouponID:           res.CouponID,
		Code:               res.Code,
		DiscountPercentage: res.DiscountPercentage.String(),
		FinalTotal:         money(res.FinalTotal),
	})
}
