package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xenking/food-orders/internal/domain/notification"
)

type notificationResponse struct {
	ID        string               `json:"id"`
	Event     string               `json:"event"`
	Type      string               `json:"type"`
	Action    string               `json:"action"`
	Message   string               `json:"message"`
	Payload   notification.Payload `json:"payload"`
	CreatedAt time.Time            `json:"createdAt"`
	ExpiresAt time.Time            `json:"expiresAt"`
	SeenAt    *time.Time           `json:"seenAt"`
}

func notificationToResponse(n notification.Notification) notificationResponse {
	return notificationResponse{
		ID:        n.ID,
		Event:     n.Event,
		Type:      string(n.Type),
		Action:    string(n.Action),
		Message:   n.Message,
		Payload:   n.Payload,
		CreatedAt: n.CreatedAt,
		ExpiresAt: n.ExpiresAt,
		SeenAt:    n.SeenAt,
	}
}

// ListNotifications returns active notifications, newest first.
func (h *Handler) ListNotifications(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))

	list, err := h.notifications.List(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]notificationResponse, len(list))
	for i, n := range list {
		out[i] = notificationToResponse(n)
	}
	c.JSON(http.StatusOK, out)
}

// MarkNotificationSeen records that a notification was seen.
func (h *Handler) MarkNotificationSeen(c *gin.Context) {
	n, err := h.notifications.MarkSeen(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, notificationToResponse(*n))
}
