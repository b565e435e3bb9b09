package handler

import (
	"github.com/gin-gonic/gin"
)

// RestaurantSession upgrades the request to a realtime session of an
// existing restaurant.
func (h *Handler) RestaurantSession(c *gin.Context) {
	id := c.Param("restaurantId")
	if _, err := h.restaurants.GetByID(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	h.sessions.Serve(c.Writer, c.Request, id)
}
