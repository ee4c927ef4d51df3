package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/NaveenRoman/AI-TUTor/core/activity"
)

var notificationColumns = []string{"id", "user_id", "title", "body", "payload", "seen", "created_at"}

type notificationRow struct {
	ID        string                        `db:"id"`
	UserID    string                        `db:"user_id"`
	Title     string                        `db:"title"`
	Body      string                        `db:"body"`
	Payload   jsonb[map[string]interface{}] `db:"payload"`
	Seen      bool                          `db:"seen"`
	CreatedAt time.Time                     `db:"created_at"`
}

type activityRepository struct {
	db *sqlx.DB
}

var _ activity.Repository = (*activityRepository)(nil)

func NewActivityRepository(db *sqlx.DB) activity.Repository {
	return &activityRepository{db: db}
}

func (repo *activityRepository) CreateNotification(ctx context.Context, n activity.Notification) (activity.Notification, error) {
	r := notificationRow{
		ID:        n.ID,
		UserID:    n.UserID,
		Title:     n.Title,
		Body:      n.Body,
		Payload:   jsonb[map[string]interface{}]{V: n.Payload},
		Seen:      n.Seen,
		CreatedAt: n.CreatedAt.UTC(),
	}
	_, err := repo.db.NamedExecContext(ctx, insertQuery("notifications", notificationColumns), r)
	return n, errors.Wrap(err, "inserting notification")
}

func (repo *activityRepository) QueryNotifications(ctx context.Context, userID string, unseenOnly bool, limit int) ([]activity.Notification, error) {
	q := "SELECT * FROM notifications WHERE user_id = $1"
	if unseenOnly {
		q += " AND NOT seen"
	}
	q += " ORDER BY created_at DESC"
	args := []interface{}{userID}
	if limit > 0 {
		q += " LIMIT $2"
		args = append(args, limit)
	}

	var rows []notificationRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying notifications")
	}
	notifs := make([]activity.Notification, 0, len(rows))
	for _, r := range rows {
		payload := r.Payload.V
		if payload == nil {
			payload = map[string]interface{}{}
		}
		notifs = append(notifs, activity.Notification{
			ID:        r.ID,
			UserID:    r.UserID,
			Title:     r.Title,
			Body:      r.Body,
			Payload:   payload,
			Seen:      r.Seen,
			CreatedAt: r.CreatedAt.UTC(),
		})
	}
	return notifs, nil
}

func (repo *activityRepository) MarkNotificationSeen(ctx context.Context, userID, id string) error {
	if !isUUID(id) {
		return activity.ErrNotFound
	}
	res, err := repo.db.ExecContext(ctx, "UPDATE notifications SET seen = true WHERE id = $1 AND user_id = $2", id, userID)
	if err != nil {
		return errors.Wrap(err, "updating notification")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return activity.ErrNotFound
	}
	return nil
}

func (repo *activityRepository) CreateUsageLog(ctx context.Context, l activity.UsageLog) error {
	_, err := repo.db.ExecContext(ctx,
		"INSERT INTO usage_logs (user_id, action, created_at) VALUES ($1, $2, $3)",
		l.UserID, l.Action, l.CreatedAt.UTC())
	return errors.Wrap(err, "inserting usage log")
}

func (repo *activityRepository) CountUsageSince(ctx context.Context, action string, since time.Time) (int, error) {
	var count int
	err := repo.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM usage_logs WHERE action = $1 AND created_at >= $2", action, since.UTC())
	return count, errors.Wrap(err, "counting usage logs")
}
