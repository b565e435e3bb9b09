package realtime

import (
	"github.com/go-faster/jx"

	"github.com/xenking/food-orders/internal/domain/notification"
)

// EncodeFrame encodes an event as {"event": name, "data": payload}.
func EncodeFrame(event string, p notification.Payload) []byte {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("event", func(e *jx.Encoder) { e.Str(event) })
		e.Field("data", func(e *jx.Encoder) { encodePayload(e, p) })
	})
	return e.Bytes()
}

func encodePayload(e *jx.Encoder, p notification.Payload) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("messageType", func(e *jx.Encoder) { e.Str(string(p.MessageType)) })
		optStr(e, "action", string(p.Action))
		optStr(e, "message", p.Message)
		optStr(e, "orderId", p.OrderID)
		optStr(e, "userId", p.UserID)
		optStr(e, "status", p.Status)
		optStr(e, "restaurantId", p.RestaurantID)
		if len(p.RestaurantIDs) > 0 {
			e.Field("restaurantIds", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, id := range p.RestaurantIDs {
						e.Str(id)
					}
				})
			})
		}
		if len(p.Items) > 0 {
			e.Field("items", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, it := range p.Items {
						encodeItem(e, it)
					}
				})
			})
		}
	})
}

func encodeItem(e *jx.Encoder, it notification.Item) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("restaurantId", func(e *jx.Encoder) { e.Str(it.RestaurantID) })
		e.Field("menuItemId", func(e *jx.Encoder) { e.Str(it.MenuItemID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(it.Name) })
		e.Field("quantity", func(e *jx.Encoder) { e.Int(it.Quantity) })
		e.Field("unitPrice", func(e *jx.Encoder) { e.Str(it.UnitPrice.StringFixed(2)) })
		optStr(e, "size", it.Size)
		if len(it.AddOns) > 0 {
			e.Field("addOns", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, a := range it.AddOns {
						e.Str(a)
					}
				})
			})
		}
	})
}

func optStr(e *jx.Encoder, name, v string) {
	if v == "" {
		return
	}
	e.Field(name, func(e *jx.Encoder) { e.Str(v) })
}
