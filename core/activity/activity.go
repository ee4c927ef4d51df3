package activity

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/NaveenRoman/AI-TUTor/core"
)

// Usage actions
const (
	ActionLogin           = "login"
	ActionQuiz            = "quiz"
	ActionDailyQuiz       = "daily_quiz"
	ActionInterview       = "interview"
	ActionChapterComplete = "chapter_complete"
	ActionTutorAsk        = "tutor_ask"
)

var ErrNotFound = errors.New("notification not found")

func init() {
	core.RegisterErrorStatus(http.StatusNotFound, ErrNotFound)
}

type Notification struct {
	ID        string                 `json:"id"`
	UserID    string                 `json:"user_id"`
	Title     string                 `json:"title"`
	Body      string                 `json:"body"`
	Payload   map[string]interface{} `json:"payload"`
	Seen      bool                   `json:"seen"`
	CreatedAt time.Time              `json:"created_at"`
}

type UsageLog struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	Action    string    `json:"action"`
	CreatedAt time.Time `json:"created_at"`
}

type (
	Repository interface {
		CreateNotification(ctx context.Context, n Notification) (Notification, error)
		// QueryNotifications returns the latest notifications first.
		QueryNotifications(ctx context.Context, userID string, unseenOnly bool, limit int) ([]Notification, error)
		MarkNotificationSeen(ctx context.Context, userID, id string) error
		CreateUsageLog(ctx context.Context, l UsageLog) error
		CountUsageSince(ctx context.Context, action string, since time.Time) (int, error)
	}

	Service interface {
		Notify(ctx context.Context, userID, title, body string, payload map[string]interface{}) (Notification, error)
		Notifications(ctx context.Context, userID string, unseenOnly bool) ([]Notification, error)
		MarkSeen(ctx context.Context, userID, id string) error
		Log(ctx context.Context, userID, action string) error
		CountSince(ctx context.Context, action string, since time.Time) (int, error)
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

const notificationsLimit = 50

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) Notify(ctx context.Context, userID, title, body string, payload map[string]interface{}) (Notification, error) {
	if payload == nil {
		payload = map[string]interface{}{}
	}
	n, err := svc.repo.CreateNotification(ctx, Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		Body:      body,
		Payload:   payload,
		CreatedAt: core.Now(),
	})
	return n, errors.Wrap(err, "creating notification")
}

func (svc *service) Notifications(ctx context.Context, userID string, unseenOnly bool) ([]Notification, error) {
	return svc.repo.QueryNotifications(ctx, userID, unseenOnly, notificationsLimit)
}

func (svc *service) MarkSeen(ctx context.Context, userID, id string) error {
	return svc.repo.MarkNotificationSeen(ctx, userID, id)
}

func (svc *service) Log(ctx context.Context, userID, action string) error {
	err := svc.repo.CreateUsageLog(ctx, UsageLog{UserID: userID, Action: action, CreatedAt: core.Now()})
	return errors.Wrap(err, "logging usage")
}

func (svc *service) CountSince(ctx context.Context, action string, since time.Time) (int, error) {
	return svc.repo.CountUsageSince(ctx, action, since)
}
