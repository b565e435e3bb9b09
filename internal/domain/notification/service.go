package notification

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

const defaultListLimit = 100

// Service serves the polling read path.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a notification Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// List returns active notifications, newest first.
func (s *Service) List(ctx context.Context, limit int) ([]Notification, error) {
	if limit <= 0 || limit > defaultListLimit {
		limit = defaultListLimit
	}
	list, err := s.repo.ListActive(ctx, s.now().UTC(), limit)
	if err != nil {
		return nil, errors.Wrap(err, "list notifications")
	}
	return list, nil
}

// MarkSeen records that the notification was seen.
func (s *Service) MarkSeen(ctx context.Context, id string) (*Notification, error) {
	n, err := s.repo.MarkSeen(ctx, id, s.now().UTC())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "mark seen")
	}
	return n, nil
}

// Sweeper periodically deletes expired notifications.
type Sweeper struct {
	repo     Repository
	interval time.Duration
	now      func() time.Time
}

// NewSweeper creates a Sweeper running every interval.
func NewSweeper(repo Repository, interval time.Duration) *Sweeper {
	return &Sweeper{repo: repo, interval: interval, now: time.Now}
}

// Run sweeps until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep deletes records expired at the current time.
func (s *Sweeper) Sweep(ctx context.Context) {
	lg := zctx.From(ctx)
	n, err := s.repo.DeleteExpired(ctx, s.now().UTC())
	if err != nil {
		lg.Warn("Sweep notifications", zap.Error(err))
		return
	}
	if n > 0 {
		lg.Debug("Expired notifications removed", zap.Int64("count", n))
	}
}
