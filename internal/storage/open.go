package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	logx "fitfeed/pkg/logx"
)

// Store is the persistence API used by the worker and notification service.
//
// Time windows are half-open: [from, to).
type Store interface {
	// Settings.
	PutSettings(ctx context.Context, s NotificationSettings) error
	Settings(ctx context.Context, userID string) (NotificationSettings, bool, error)
	// SettingsByQuietEnd returns users whose quiet hours are enabled and end
	// exactly at the given "HH:MM" wall-clock string.
	SettingsByQuietEnd(ctx context.Context, hhmm string) ([]NotificationSettings, error)
	// SettingsByDigestHour returns users with the following digest enabled
	// (frequency != off) whose digest_time matches the given "HH:00" string.
	SettingsByDigestHour(ctx context.Context, hhmm string) ([]NotificationSettings, error)
	// ReminderRecipients returns users eligible for workout reminders.
	ReminderRecipients(ctx context.Context) ([]NotificationSettings, error)
	// PushRecipients returns all users with notifications enabled.
	PushRecipients(ctx context.Context) ([]NotificationSettings, error)

	// Follow graph + activity log. The worker only reads these; the write
	// paths exist because the API processes share this layer.
	PutFollow(ctx context.Context, followerID, followeeID string) error
	Following(ctx context.Context, userID string) ([]string, error)
	InsertEvent(ctx context.Context, e Event) error
	CountEventsByActors(ctx context.Context, et EventType, actorIDs []string, from, to time.Time) (int, error)

	// Notifications.
	InsertNotification(ctx context.Context, n Notification) error
	NotificationByID(ctx context.Context, id string) (Notification, bool, error)
	// UnreadCountsByType groups the user's unread notifications created in
	// [from, to) by type, skipping the excluded type entirely.
	UnreadCountsByType(ctx context.Context, userID string, from, to time.Time, exclude NotificationType) (map[NotificationType]int, error)
	// PendingFollowNotifications returns unbundled, unpushed follow
	// notifications created at or after since, in insertion order.
	PendingFollowNotifications(ctx context.Context, since time.Time) ([]Notification, error)
	SetGroupKey(ctx context.Context, ids []string, key string) error
	MarkPushDelivered(ctx context.Context, id string, at time.Time) error
	MarkRead(ctx context.Context, id string, at time.Time) error
	PruneNotifications(ctx context.Context, olderThan time.Time) (int, error)

	Close() error
}

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "", "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
