package config

import (
	"fmt"
	"strings"
	"time"
)

// Duration-ish fields are carried in the file as Go duration strings
// ("500ms", "10s", "24h") so the config stays hand-editable. An empty
// string means the field is unset.

// ParseDurationField parses one such field. path names the field in error
// messages (e.g. "push.send_timeout"). Empty input yields zero.
func ParseDurationField(path, raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	switch {
	case err != nil:
		return 0, fmt.Errorf("%s: %q is not a duration: %w", path, raw, err)
	case d < 0:
		return 0, fmt.Errorf("%s: negative durations are not allowed", path)
	}
	return d, nil
}

// ParseDurationOrDefault resolves an unset field to def instead of zero.
func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil {
		return 0, err
	}
	if d == 0 {
		return def, nil
	}
	return d, nil
}
