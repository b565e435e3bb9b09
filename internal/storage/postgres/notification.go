package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/food-orders/internal/domain/notification"
)

const (
	notificationColumns = `id, event, message, type, action, payload, created_at, expires_at, seen_at`

	createNotificationSQL = `INSERT INTO notifications (` + notificationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	listNotificationsSQL = `SELECT ` + notificationColumns + ` FROM notifications
		WHERE expires_at > $1 ORDER BY created_at DESC LIMIT $2`

	markNotificationSeenSQL = `UPDATE notifications SET seen_at = COALESCE(seen_at, $2)
		WHERE id = $1 AND expires_at > $2
		RETURNING ` + notificationColumns

	deleteExpiredNotificationsSQL = `DELETE FROM notifications WHERE expires_at <= $1`
)

var _ notification.Repository = (*NotificationRepository)(nil)

// NotificationRepository implements notification.Repository backed by PostgreSQL.
type NotificationRepository struct {
	pool *pgxpool.Pool
}

// NewNotificationRepository returns a NotificationRepository that uses the given pool.
func NewNotificationRepository(pool *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{pool: pool}
}

// Create stores a notification record.
func (r *NotificationRepository) Create(ctx context.Context, n *notification.Notification) error {
	payload, err := json.Marshal(n.Payload)
	if err != nil {
		return fmt.Errorf("marshaling notification payload: %w", err)
	}

	_, err = r.pool.Exec(ctx, createNotificationSQL,
		n.ID, n.Event, n.Message, string(n.Type), string(n.Action), payload,
		n.CreatedAt, n.ExpiresAt, n.SeenAt,
	)
	if err != nil {
		return fmt.Errorf("creating notification %q: %w", n.ID, err)
	}
	return nil
}

// ListActive returns notifications that have not expired at now.
func (r *NotificationRepository) ListActive(ctx context.Context, now time.Time, limit int) ([]notification.Notification, error) {
	rows, err := r.pool.Query(ctx, listNotificationsSQL, now, limit)
	if err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}

	list, err := pgx.CollectRows(rows, scanNotification)
	if err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}
	return list, nil
}

// MarkSeen sets seen_at unless it is already set.
func (r *NotificationRepository) MarkSeen(ctx context.Context, id string, at time.Time) (*notification.Notification, error) {
	rows, err := r.pool.Query(ctx, markNotificationSeenSQL, id, at)
	if err != nil {
		return nil, fmt.Errorf("marking notification %q seen: %w", id, err)
	}

	n, err := pgx.CollectExactlyOneRow(rows, scanNotification)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notification.ErrNotFound
		}
		return nil, fmt.Errorf("marking notification %q seen: %w", id, err)
	}
	return &n, nil
}

// DeleteExpired removes notifications expired at now.
func (r *NotificationRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, deleteExpiredNotificationsSQL, now)
	if err != nil {
		return 0, fmt.Errorf("deleting expired notifications: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanNotification(row pgx.CollectableRow) (notification.Notification, error) {
	var (
		n       notification.Notification
		typ     string
		action  string
		payload []byte
	)
	if err := row.Scan(
		&n.ID, &n.Event, &n.Message, &typ, &action, &payload,
		&n.CreatedAt, &n.ExpiresAt, &n.SeenAt,
	); err != nil {
		return n, err
	}
	n.Type = notification.Type(typ)
	n.Action = notification.Action(action)
	if err := json.Unmarshal(payload, &n.Payload); err != nil {
		return n, fmt.Errorf("unmarshaling notification payload: %w", err)
	}
	return n, nil
}
