package notify

import (
	"time"

	"fitfeed/internal/pushcopy"
	"fitfeed/internal/storage"
)

// Config controls the push dispatch pipeline.
type Config struct {
	Enabled       bool
	Workers       int
	QueueSize     int
	RatePerSec    int
	RetryMax      int
	RetryBase     time.Duration
	RetryMaxDelay time.Duration
	SendTimeout   time.Duration
}

// CreateParams describes one notification to materialize.
//
// Push may be set to override the default payload shaping for the type.
// A non-empty GroupKey marks the record as absorbed into a bundle; it is
// persisted but never pushed.
type CreateParams struct {
	UserID   string
	Type     storage.NotificationType
	Title    string
	Body     string
	GroupKey string
	Metadata map[string]any
	Push     pushcopy.Push
}

// Record is the payload attached to notification lifecycle events on the bus.
type Record struct {
	ID     string
	UserID string
	Type   string
	At     time.Time
	Error  string `json:",omitempty"`
}
