package worker

import (
	"context"
	"time"

	"fitfeed/internal/notify"
	"fitfeed/internal/storage"
)

// Config controls the scheduling loop. Durations are already parsed;
// see internal/config for the on-disk representation and defaults.
type Config struct {
	Enabled  bool
	Timezone string // IANA zone for wall-clock matching

	BundleThreshold int
	BundleWindow    time.Duration
	DigestLookback  time.Duration
	CallTimeout     time.Duration
	Retention       time.Duration
}

// Notifier is the slice of the notification service the worker drives.
type Notifier interface {
	Create(ctx context.Context, p notify.CreateParams) (storage.Notification, error)
}
