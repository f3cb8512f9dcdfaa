package worker

import (
	"context"
	"errors"
	"testing"

	"fitfeed/internal/storage"
)

func TestMassWorkoutReminder(t *testing.T) {
	t.Parallel()
	s, st, fn := newTestService(t)
	ctx := context.Background()

	on := storage.DefaultSettings("on")
	off := storage.DefaultSettings("off")
	off.WorkoutRemindersEnabled = false
	muted := storage.DefaultSettings("muted")
	muted.NotificationsEnabled = false
	for _, set := range []storage.NotificationSettings{on, off, muted} {
		if err := st.PutSettings(ctx, set); err != nil {
			t.Fatalf("PutSettings: %v", err)
		}
	}

	n, err := s.MassWorkoutReminder(ctx, "custom nudge")
	if err != nil {
		t.Fatalf("MassWorkoutReminder: %v", err)
	}
	if n != 1 {
		t.Fatalf("sent = %d, want 1", n)
	}
	got := fn.all()
	if len(got) != 1 || got[0].UserID != "on" {
		t.Fatalf("unexpected creates: %+v", got)
	}
	if got[0].Type != storage.TypeWorkoutReminder {
		t.Fatalf("type = %s", got[0].Type)
	}
	if got[0].Body != "custom nudge" {
		t.Fatalf("body = %q", got[0].Body)
	}
	if _, ok := got[0].Push.Payload()["deep_link"]; ok {
		t.Fatalf("reminder push must not carry deep_link")
	}
}

func TestMassWorkoutReminderContinuesPastFailingUser(t *testing.T) {
	t.Parallel()
	s, st, fn := newTestService(t)
	ctx := context.Background()

	for _, userID := range []string{"alice", "broken", "carol"} {
		if err := st.PutSettings(ctx, storage.DefaultSettings(userID)); err != nil {
			t.Fatalf("PutSettings: %v", err)
		}
	}
	fn.failFor("broken", errors.New("pipeline down"))

	n, err := s.MassWorkoutReminder(ctx, "")
	if err != nil {
		t.Fatalf("MassWorkoutReminder: %v", err)
	}
	if n != 2 {
		t.Fatalf("sent = %d, want 2", n)
	}
	got := map[string]bool{}
	for _, p := range fn.all() {
		got[p.UserID] = true
	}
	if !got["alice"] || !got["carol"] || got["broken"] {
		t.Fatalf("reminders went to %v, want alice and carol only", got)
	}
}

func TestFeaturedSuggestionBlast(t *testing.T) {
	t.Parallel()
	s, st, fn := newTestService(t)
	ctx := context.Background()

	a := storage.DefaultSettings("a")
	b := storage.DefaultSettings("b")
	muted := storage.DefaultSettings("muted")
	muted.NotificationsEnabled = false
	for _, set := range []storage.NotificationSettings{a, b, muted} {
		if err := st.PutSettings(ctx, set); err != nil {
			t.Fatalf("PutSettings: %v", err)
		}
	}

	n, err := s.FeaturedSuggestionBlast(ctx, "Morning HIIT", "app://workout/42", "")
	if err != nil {
		t.Fatalf("FeaturedSuggestionBlast: %v", err)
	}
	if n != 2 {
		t.Fatalf("sent = %d, want 2", n)
	}
	for _, p := range fn.all() {
		if p.Type != storage.TypeFeaturedWorkout {
			t.Fatalf("type = %s", p.Type)
		}
		if got := p.Push.Payload()["deep_link"]; got != "app://workout/42" {
			t.Fatalf("deep_link = %q", got)
		}
	}
}
