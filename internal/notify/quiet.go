package notify

import (
	"fmt"
	"time"

	"fitfeed/internal/storage"
)

// inQuietHours reports whether t falls inside the user's quiet window.
// The window is [start, end) on the wall clock; end <= start means the
// window wraps past midnight (22:00-08:00 covers 22:00..23:59 and
// 00:00..07:59).
func inQuietHours(set storage.NotificationSettings, t time.Time) (bool, error) {
	start, err := parseHHMM(set.QuietHoursStart)
	if err != nil {
		return false, fmt.Errorf("quiet_hours_start: %w", err)
	}
	end, err := parseHHMM(set.QuietHoursEnd)
	if err != nil {
		return false, fmt.Errorf("quiet_hours_end: %w", err)
	}

	now := t.Hour()*60 + t.Minute()
	if start == end {
		// Degenerate window; treat as the full day.
		return true, nil
	}
	if start < end {
		return now >= start && now < end, nil
	}
	return now >= start || now < end, nil
}

// parseHHMM parses a "HH:MM" wall-clock string into minutes since midnight.
func parseHHMM(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("parse %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("parse %q: out of range", s)
	}
	return h*60 + m, nil
}
