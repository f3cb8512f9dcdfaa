package config

// Config is the full worker configuration, loaded from a JSON or YAML file.
//
// All duration-ish fields are Go duration strings (e.g. "500ms", "10s", "1m")
// unless noted otherwise.
type Config struct {
	Logging LoggingConfig `json:"logging"`

	// Storage selects the persistence backend shared with the API processes.
	Storage StorageConfig `json:"storage"`

	// Push configures the mobile push gateway and the async dispatch pipeline.
	Push PushConfig `json:"push"`

	// Worker controls the notification scheduling loop.
	Worker WorkerConfig `json:"worker"`

	// Admin exposes the manual trigger endpoints (optional).
	Admin AdminConfig `json:"admin,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig controls the persistence layer.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./fitfeed.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// PushConfig controls the push gateway client and dispatch pipeline.
//
// Token can be left empty in the file and provided via the
// PUSH_GATEWAY_TOKEN environment variable instead (see cmd/worker).
//
// Defaults (when fields are omitted/zero):
//   - workers: 2
//   - queue_size: 512
//   - rate_per_sec: 10
//   - retry_max: 2
//   - retry_base: "500ms"
//   - retry_max_delay: "10s"
//   - send_timeout: "10s"
type PushConfig struct {
	Enabled  bool   `json:"enabled"`
	Endpoint string `json:"endpoint,omitempty"`
	Token    string `json:"token,omitempty"`

	Workers       int    `json:"workers,omitempty"`
	QueueSize     int    `json:"queue_size,omitempty"`
	RatePerSec    int    `json:"rate_per_sec,omitempty"`
	RetryMax      int    `json:"retry_max,omitempty"`
	RetryBase     string `json:"retry_base,omitempty"`
	RetryMaxDelay string `json:"retry_max_delay,omitempty"`
	SendTimeout   string `json:"send_timeout,omitempty"`
}

// WorkerConfig controls the scheduling loop.
//
// BundleThreshold is the minimum number of pending follow notifications
// (within BundleWindow) that triggers a bundle. Below it, notifications
// are left untouched.
//
// Defaults (when fields are omitted/zero):
//   - timezone: "UTC"
//   - bundle_threshold: 3
//   - bundle_window: "30m"
//   - digest_lookback: "24h"
//   - call_timeout: "10s" (per-user store call bound inside a tick)
//   - retention: "2160h" (90 days; notification prune horizon)
type WorkerConfig struct {
	Enabled bool `json:"enabled"`

	// Timezone is the IANA zone used for tick wall-clock matching
	// (digest hours and quiet-hours ends; 3x-week weekdays are UTC).
	Timezone string `json:"timezone,omitempty"`

	BundleThreshold int    `json:"bundle_threshold,omitempty"`
	BundleWindow    string `json:"bundle_window,omitempty"`
	DigestLookback  string `json:"digest_lookback,omitempty"`
	CallTimeout     string `json:"call_timeout,omitempty"`
	Retention       string `json:"retention,omitempty"`
}

// AdminConfig controls the manual-trigger HTTP server.
//
// Security note:
//   - Prefer binding to localhost (e.g. "127.0.0.1:8090").
//   - Set a token if you bind to a non-loopback address.
type AdminConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"`  // default: "127.0.0.1:8090"
	Token   string `json:"token,omitempty"` // optional bearer token (do not log)
}
