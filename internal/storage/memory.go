package storage

import (
	"context"
	"sort"
	"sync"
	"time"
)

// memStore is an in-process Store used by tests and local development.
// Query semantics mirror the sqlite driver.
type memStore struct {
	mu sync.Mutex

	settings      map[string]NotificationSettings
	follows       map[string]map[string]struct{} // follower -> followees
	events        []Event
	notifications []Notification // insertion order
	byID          map[string]int // id -> index into notifications
}

// NewMemory returns an empty in-memory store.
func NewMemory() Store {
	return &memStore{
		settings: map[string]NotificationSettings{},
		follows:  map[string]map[string]struct{}{},
		byID:     map[string]int{},
	}
}

func (m *memStore) Close() error { return nil }

// ---- Settings ----

func (m *memStore) PutSettings(_ context.Context, s NotificationSettings) error {
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = time.Now()
	}
	m.mu.Lock()
	m.settings[s.UserID] = s
	m.mu.Unlock()
	return nil
}

func (m *memStore) Settings(_ context.Context, userID string) (NotificationSettings, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.settings[userID]
	return s, ok, nil
}

func (m *memStore) filterSettings(keep func(NotificationSettings) bool) []NotificationSettings {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]NotificationSettings, 0, len(m.settings))
	for _, s := range m.settings {
		if keep(s) {
			out = append(out, s)
		}
	}
	// Stable order keeps tests deterministic.
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

func (m *memStore) SettingsByQuietEnd(_ context.Context, hhmm string) ([]NotificationSettings, error) {
	return m.filterSettings(func(s NotificationSettings) bool {
		return s.NotificationsEnabled && s.QuietHoursEnabled && s.QuietHoursEnd == hhmm
	}), nil
}

func (m *memStore) SettingsByDigestHour(_ context.Context, hhmm string) ([]NotificationSettings, error) {
	return m.filterSettings(func(s NotificationSettings) bool {
		return s.NotificationsEnabled && s.FollowingDigestEnabled &&
			s.FollowingDigestFrequency != FrequencyOff && s.DigestTime == hhmm
	}), nil
}

func (m *memStore) ReminderRecipients(_ context.Context) ([]NotificationSettings, error) {
	return m.filterSettings(func(s NotificationSettings) bool {
		return s.NotificationsEnabled && s.WorkoutRemindersEnabled
	}), nil
}

func (m *memStore) PushRecipients(_ context.Context) ([]NotificationSettings, error) {
	return m.filterSettings(func(s NotificationSettings) bool {
		return s.NotificationsEnabled
	}), nil
}

// ---- Follow graph + activity log ----

func (m *memStore) PutFollow(_ context.Context, followerID, followeeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := m.follows[followerID]
	if set == nil {
		set = map[string]struct{}{}
		m.follows[followerID] = set
	}
	set[followeeID] = struct{}{}
	return nil
}

func (m *memStore) Following(_ context.Context, userID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := m.follows[userID]
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (m *memStore) InsertEvent(_ context.Context, e Event) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	m.mu.Lock()
	m.events = append(m.events, e)
	m.mu.Unlock()
	return nil
}

func (m *memStore) CountEventsByActors(_ context.Context, et EventType, actorIDs []string, from, to time.Time) (int, error) {
	if len(actorIDs) == 0 {
		return 0, nil
	}
	actors := map[string]struct{}{}
	for _, id := range actorIDs {
		actors[id] = struct{}{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.events {
		if e.Type != et {
			continue
		}
		if _, ok := actors[e.ActorID]; !ok {
			continue
		}
		if e.CreatedAt.Before(from) || !e.CreatedAt.Before(to) {
			continue
		}
		n++
	}
	return n, nil
}

// ---- Notifications ----

func (m *memStore) InsertNotification(_ context.Context, n Notification) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	m.mu.Lock()
	m.byID[n.ID] = len(m.notifications)
	m.notifications = append(m.notifications, n)
	m.mu.Unlock()
	return nil
}

func (m *memStore) NotificationByID(_ context.Context, id string) (Notification, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.byID[id]
	if !ok {
		return Notification{}, false, nil
	}
	return m.notifications[i], true, nil
}

func (m *memStore) UnreadCountsByType(_ context.Context, userID string, from, to time.Time, exclude NotificationType) (map[NotificationType]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[NotificationType]int{}
	for _, n := range m.notifications {
		if n.UserID != userID || n.ReadAt != nil || n.Type == exclude {
			continue
		}
		if n.CreatedAt.Before(from) || !n.CreatedAt.Before(to) {
			continue
		}
		out[n.Type]++
	}
	return out, nil
}

func (m *memStore) PendingFollowNotifications(_ context.Context, since time.Time) ([]Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Notification
	for _, n := range m.notifications {
		if n.Type != TypeFollow || n.GroupKey != "" || n.DeliveredPushAt != nil {
			continue
		}
		if n.CreatedAt.Before(since) {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

func (m *memStore) SetGroupKey(_ context.Context, ids []string, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		if i, ok := m.byID[id]; ok {
			m.notifications[i].GroupKey = key
		}
	}
	return nil
}

func (m *memStore) MarkPushDelivered(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i, ok := m.byID[id]; ok {
		t := at
		m.notifications[i].DeliveredPushAt = &t
	}
	return nil
}

func (m *memStore) MarkRead(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i, ok := m.byID[id]; ok && m.notifications[i].ReadAt == nil {
		t := at
		m.notifications[i].ReadAt = &t
	}
	return nil
}

func (m *memStore) PruneNotifications(_ context.Context, olderThan time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.notifications[:0]
	removed := 0
	for _, n := range m.notifications {
		if n.CreatedAt.Before(olderThan) {
			removed++
			continue
		}
		kept = append(kept, n)
	}
	m.notifications = kept
	m.byID = make(map[string]int, len(kept))
	for i, n := range kept {
		m.byID[n.ID] = i
	}
	return removed, nil
}
