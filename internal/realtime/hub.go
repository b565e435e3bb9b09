// Package realtime delivers domain events to connected restaurant clients.
package realtime

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/xenking/food-orders/internal/domain/notification"
)

const instrumentationName = "github.com/xenking/food-orders/internal/realtime"

// Session is a live connection of a restaurant client.
type Session interface {
	// Send queues a frame without blocking. It returns false when the
	// frame was not queued.
	Send(frame []byte) bool
	// Close terminates the session. It is safe to call more than once.
	Close()
}

// Hub maps restaurants to their single active session and broadcasts
// events to every session.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]Session

	delivered metric.Int64Counter
	dropped   metric.Int64Counter
}

var _ notification.Publisher = (*Hub)(nil)

// NewHub creates an empty Hub. A nil meter provider disables metrics.
func NewHub(mp metric.MeterProvider) (*Hub, error) {
	if mp == nil {
		mp = noop.NewMeterProvider()
	}
	meter := mp.Meter(instrumentationName)

	delivered, err := meter.Int64Counter("realtime.frames.delivered",
		metric.WithDescription("Frames queued to restaurant sessions"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create delivered counter")
	}
	dropped, err := meter.Int64Counter("realtime.frames.dropped",
		metric.WithDescription("Frames dropped because a session was not keeping up"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create dropped counter")
	}

	return &Hub{
		sessions:  make(map[string]Session),
		delivered: delivered,
		dropped:   dropped,
	}, nil
}

// Register makes s the session of restaurantID. A previous session of the
// same restaurant is replaced and closed.
func (h *Hub) Register(restaurantID string, s Session) {
	h.mu.Lock()
	prev, ok := h.sessions[restaurantID]
	h.sessions[restaurantID] = s
	h.mu.Unlock()

	if ok && prev != s {
		prev.Close()
	}
}

// Unregister removes s from whichever restaurant it is registered for and
// reports whether it was found. A session that was already replaced is not
// found.
func (h *Hub) Unregister(s Session) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, cur := range h.sessions {
		if cur == s {
			delete(h.sessions, id)
			return true
		}
	}
	return false
}

// Len returns the number of registered sessions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Broadcast sends the event to all sessions regardless of the restaurant
// the payload concerns. Clients filter on restaurantId themselves.
func (h *Hub) Broadcast(ctx context.Context, event string, p notification.Payload) {
	frame := EncodeFrame(event, p)

	h.mu.RLock()
	targets := make([]Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	attrs := metric.WithAttributes(attribute.String("event", event))
	var dropped int64
	for _, s := range targets {
		if !s.Send(frame) {
			dropped++
		}
	}
	h.delivered.Add(ctx, int64(len(targets))-dropped, attrs)
	if dropped > 0 {
		h.dropped.Add(ctx, dropped, attrs)
		zctx.From(ctx).Warn("Dropped realtime frames",
			zap.String("event", event),
			zap.Int64("dropped", dropped),
		)
	}
}

// Close closes and removes all sessions.
func (h *Hub) Close() {
	h.mu.Lock()
	sessions := h.sessions
	h.sessions = make(map[string]Session)
	h.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
