package inmemdb

import (
	"context"
	"time"

	"github.com/NaveenRoman/AI-TUTor/core/activity"
)

type activityRepository struct {
	db *DB
}

var _ activity.Repository = (*activityRepository)(nil)

func NewActivityRepository(db *DB) activity.Repository {
	return &activityRepository{db: db}
}

func (repo *activityRepository) CreateNotification(_ context.Context, n activity.Notification) (activity.Notification, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.notifications = append(repo.db.notifications, n)
	return n, nil
}

func (repo *activityRepository) QueryNotifications(_ context.Context, userID string, unseenOnly bool, limit int) ([]activity.Notification, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	notifs := make([]activity.Notification, 0)
	// newest are appended last
	for i := len(repo.db.notifications) - 1; i >= 0; i-- {
		n := repo.db.notifications[i]
		if n.UserID != userID || (unseenOnly && n.Seen) {
			continue
		}
		notifs = append(notifs, n)
		if limit > 0 && len(notifs) == limit {
			break
		}
	}
	return notifs, nil
}

func (repo *activityRepository) MarkNotificationSeen(_ context.Context, userID, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for i, n := range repo.db.notifications {
		if n.ID == id && n.UserID == userID {
			repo.db.notifications[i].Seen = true
			return nil
		}
	}
	return activity.ErrNotFound
}

func (repo *activityRepository) CreateUsageLog(_ context.Context, l activity.UsageLog) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	l.ID = int64(len(repo.db.usageLogs) + 1)
	repo.db.usageLogs = append(repo.db.usageLogs, l)
	return nil
}

func (repo *activityRepository) CountUsageSince(_ context.Context, action string, since time.Time) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var count int
	for _, l := range repo.db.usageLogs {
		if l.Action == action && !l.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}
