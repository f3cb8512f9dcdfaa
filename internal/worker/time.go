package worker

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// RoundDownToFiveMinutes truncates t to the preceding 5-minute wall-clock
// boundary in t's location (10:07 -> 10:05, 10:00 -> 10:00).
func RoundDownToFiveMinutes(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute()-t.Minute()%5, 0, 0, t.Location())
}

// ParseHHMM parses a "HH:MM" wall-clock string.
func ParseHHMM(s string) (hour int, minute int, err error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h, m, nil
}

// FormatHHMM renders a wall-clock "HH:MM" string.
func FormatHHMM(hour, minute int) string {
	return fmt.Sprintf("%02d:%02d", hour, minute)
}

// QuietSpanHours estimates the length of a quiet-hours window in whole
// hours from its "HH:MM" endpoints, using hour components only. An end
// before the start means the window wraps past midnight.
//
// This is an approximation of the actual quiet period, kept deliberately
// coarse: the while-away digest counts over [now - span, now), not over
// the exact configured window.
func QuietSpanHours(start, end string) (int, error) {
	sh, _, err := ParseHHMM(start)
	if err != nil {
		return 0, err
	}
	eh, _, err := ParseHHMM(end)
	if err != nil {
		return 0, err
	}
	if eh < sh {
		return (24 - sh) + eh, nil
	}
	return eh - sh, nil
}
