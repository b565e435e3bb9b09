package notification

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Dispatcher broadcasts events through a Publisher and stores a
// notification record for each of them in the background.
type Dispatcher struct {
	pub          Publisher
	repo         Repository
	ttl          time.Duration
	storeTimeout time.Duration
	now          func() time.Time
	wg           sync.WaitGroup
}

var _ Publisher = (*Dispatcher)(nil)

// NewDispatcher creates a Dispatcher. Records expire ttl after creation.
func NewDispatcher(pub Publisher, repo Repository, ttl time.Duration) *Dispatcher {
	return &Dispatcher{
		pub:          pub,
		repo:         repo,
		ttl:          ttl,
		storeTimeout: 5 * time.Second,
		now:          time.Now,
	}
}

// Broadcast delivers the event and returns without waiting for the record
// to be stored. Storage failures are logged.
func (d *Dispatcher) Broadcast(ctx context.Context, event string, p Payload) {
	d.pub.Broadcast(ctx, event, p)

	created := d.now().UTC()
	n := &Notification{
		ID:        uuid.New().String(),
		Event:     event,
		Type:      p.MessageType,
		Action:    p.Action,
		Message:   p.Message,
		Payload:   p,
		CreatedAt: created,
		ExpiresAt: created.Add(d.ttl),
	}
	if n.Action == "" {
		n.Action = ActionCreate
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.storeTimeout)
		defer cancel()

		if err := d.repo.Create(ctx, n); err != nil {
			zctx.From(ctx).Warn("Store notification",
				zap.Error(err),
				zap.String("event", event),
				zap.String("order_id", p.OrderID),
			)
		}
	}()
}

// Wait blocks until all pending records are stored.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
