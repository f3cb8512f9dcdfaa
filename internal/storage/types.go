package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "sqlite": SQLite database file (default for deployments)
//   - "memory": in-process store (tests, local development)
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// NotificationType is the semantic type of a notification record.
type NotificationType string

const (
	TypeLike            NotificationType = "like"
	TypeComment         NotificationType = "comment"
	TypeFollow          NotificationType = "follow"
	TypeMessage         NotificationType = "message"
	TypeWorkoutReminder NotificationType = "workout_reminder"
	TypeFeaturedWorkout NotificationType = "featured_workout"
	TypeFollowingDigest NotificationType = "following_digest"
	TypeWhileAwayDigest NotificationType = "while_away_digest"
	TypeFollowBundle    NotificationType = "follow_bundle"
)

// EventType labels entries in the append-only activity log.
type EventType string

const (
	EventWorkoutCompleted EventType = "workout_completed"
	EventPostCreated      EventType = "post_created"
)

// DigestFrequency controls how often the following-activity digest fires.
type DigestFrequency string

const (
	FrequencyOff          DigestFrequency = "off"
	FrequencyDaily        DigestFrequency = "daily"
	FrequencyThreePerWeek DigestFrequency = "3x_week"
)

// NotificationSettings holds one user's notification preferences.
//
// Time-of-day fields are "HH:MM" strings in the worker's configured
// timezone. DigestTime is constrained to the top of an hour ("HH:00").
// The worker reads these; only the settings endpoint mutates them.
type NotificationSettings struct {
	UserID                   string
	NotificationsEnabled     bool
	QuietHoursEnabled        bool
	QuietHoursStart          string
	QuietHoursEnd            string
	FollowingDigestEnabled   bool
	FollowingDigestFrequency DigestFrequency
	DigestTime               string
	WorkoutRemindersEnabled  bool
	UpdatedAt                time.Time
}

// DefaultSettings returns the settings created on a user's first
// notification-settings access.
func DefaultSettings(userID string) NotificationSettings {
	return NotificationSettings{
		UserID:                   userID,
		NotificationsEnabled:     true,
		QuietHoursEnabled:        false,
		QuietHoursStart:          "22:00",
		QuietHoursEnd:            "08:00",
		FollowingDigestEnabled:   false,
		FollowingDigestFrequency: FrequencyOff,
		DigestTime:               "18:00",
		WorkoutRemindersEnabled:  true,
	}
}

// Notification is a persisted notification record.
//
// A record with non-empty GroupKey has been absorbed into a bundle and
// must never trigger a push on its own. Read state is a flag (ReadAt),
// never a delete.
type Notification struct {
	ID              string
	UserID          string
	Type            NotificationType
	Title           string
	Body            string
	CreatedAt       time.Time
	ReadAt          *time.Time
	GroupKey        string
	DeliveredPushAt *time.Time
	Metadata        map[string]any
}

// Event is one entry in the append-only user-activity log.
type Event struct {
	ID        string
	ActorID   string
	Type      EventType
	CreatedAt time.Time
}
