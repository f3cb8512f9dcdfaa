package worker

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"fitfeed/internal/eventbus"
	"fitfeed/internal/notify"
	"fitfeed/internal/storage"
	logx "fitfeed/pkg/logx"
)

type fakeNotifier struct {
	mu      sync.Mutex
	created []notify.CreateParams
	// fail maps user IDs to the error their creates return.
	fail map[string]error
}

func (f *fakeNotifier) Create(_ context.Context, p notify.CreateParams) (storage.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[p.UserID]; err != nil {
		return storage.Notification{}, err
	}
	f.created = append(f.created, p)
	return storage.Notification{
		ID:     fmt.Sprintf("n%d", len(f.created)),
		UserID: p.UserID,
		Type:   p.Type,
		Title:  p.Title,
		Body:   p.Body,
	}, nil
}

func (f *fakeNotifier) failFor(userID string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail == nil {
		f.fail = map[string]error{}
	}
	f.fail[userID] = err
}

func (f *fakeNotifier) all() []notify.CreateParams {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]notify.CreateParams(nil), f.created...)
}

func newTestService(t *testing.T) (*Service, storage.Store, *fakeNotifier) {
	t.Helper()
	st := storage.NewMemory()
	fn := &fakeNotifier{}
	s := New(Config{Enabled: true}, st, fn, logx.Nop(), nil)
	return s, st, fn
}

func TestFollowingDigestBody(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		workouts int
		posts    int
		want     string
	}{
		{name: "both zero", want: ""},
		{name: "single workout", workouts: 1, want: "1 person you follow worked out today"},
		{name: "plural workouts", workouts: 3, want: "3 people you follow worked out today"},
		{name: "single post", posts: 1, want: "1 new post today"},
		{name: "plural posts", posts: 5, want: "5 new posts today"},
		{name: "both", workouts: 1, posts: 2, want: "1 person you follow worked out • 2 new posts today"},
		{name: "both plural", workouts: 2, posts: 2, want: "2 people you follow worked out • 2 new posts today"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := FollowingDigestBody(tt.workouts, tt.posts); got != tt.want {
				t.Fatalf("FollowingDigestBody(%d, %d) = %q, want %q", tt.workouts, tt.posts, got, tt.want)
			}
		})
	}
}

func TestWhileAwayBody(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		counts map[storage.NotificationType]int
		want   string
	}{
		{name: "empty", counts: nil, want: ""},
		{
			name:   "priority order",
			counts: map[storage.NotificationType]int{storage.TypeMessage: 1, storage.TypeLike: 3, storage.TypeFollow: 2},
			want:   "While you were away: 3 new likes, 2 new followers, 1 new message",
		},
		{
			name:   "singulars",
			counts: map[storage.NotificationType]int{storage.TypeLike: 1, storage.TypeComment: 1},
			want:   "While you were away: 1 new like, 1 new comment",
		},
		{
			name:   "unrecognized types fall back to total",
			counts: map[storage.NotificationType]int{storage.TypeWorkoutReminder: 4, storage.TypeFollowBundle: 1},
			want:   "While you were away: 5 notifications",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := WhileAwayBody(tt.counts); got != tt.want {
				t.Fatalf("WhileAwayBody(%v) = %q, want %q", tt.counts, got, tt.want)
			}
		})
	}
}

func TestSendFollowingDigestNoActivity(t *testing.T) {
	t.Parallel()
	s, st, fn := newTestService(t)
	ctx := context.Background()

	if err := st.PutFollow(ctx, "alice", "x"); err != nil {
		t.Fatalf("PutFollow: %v", err)
	}
	if err := s.sendFollowingDigest(ctx, "alice", time.Now().UTC()); err != nil {
		t.Fatalf("sendFollowingDigest: %v", err)
	}
	if got := fn.all(); len(got) != 0 {
		t.Fatalf("expected no notification, got %d", len(got))
	}
}

func TestSendFollowingDigestNoFollows(t *testing.T) {
	t.Parallel()
	s, _, fn := newTestService(t)

	if err := s.sendFollowingDigest(context.Background(), "loner", time.Now().UTC()); err != nil {
		t.Fatalf("sendFollowingDigest: %v", err)
	}
	if got := fn.all(); len(got) != 0 {
		t.Fatalf("expected no notification, got %d", len(got))
	}
}

func TestSendFollowingDigestComposesBody(t *testing.T) {
	t.Parallel()
	s, st, fn := newTestService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	// alice follows x and y; x worked out once, y posted twice within 24h.
	for _, followee := range []string{"x", "y"} {
		if err := st.PutFollow(ctx, "alice", followee); err != nil {
			t.Fatalf("PutFollow: %v", err)
		}
	}
	events := []storage.Event{
		{ID: "e1", ActorID: "x", Type: storage.EventWorkoutCompleted, CreatedAt: now.Add(-2 * time.Hour)},
		{ID: "e2", ActorID: "y", Type: storage.EventPostCreated, CreatedAt: now.Add(-3 * time.Hour)},
		{ID: "e3", ActorID: "y", Type: storage.EventPostCreated, CreatedAt: now.Add(-20 * time.Hour)},
		// Outside the window and from a stranger; both ignored.
		{ID: "e4", ActorID: "y", Type: storage.EventPostCreated, CreatedAt: now.Add(-30 * time.Hour)},
		{ID: "e5", ActorID: "z", Type: storage.EventWorkoutCompleted, CreatedAt: now.Add(-1 * time.Hour)},
	}
	for _, e := range events {
		if err := st.InsertEvent(ctx, e); err != nil {
			t.Fatalf("InsertEvent: %v", err)
		}
	}

	if err := s.sendFollowingDigest(ctx, "alice", now); err != nil {
		t.Fatalf("sendFollowingDigest: %v", err)
	}
	got := fn.all()
	if len(got) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(got))
	}
	if got[0].Type != storage.TypeFollowingDigest {
		t.Fatalf("type = %s, want %s", got[0].Type, storage.TypeFollowingDigest)
	}
	const want = "1 person you follow worked out • 2 new posts today"
	if got[0].Body != want {
		t.Fatalf("body = %q, want %q", got[0].Body, want)
	}
}

func TestSendWhileAwayDigest(t *testing.T) {
	t.Parallel()
	s, st, fn := newTestService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	set := storage.DefaultSettings("bob")
	set.QuietHoursEnabled = true
	set.QuietHoursStart = "22:00"
	set.QuietHoursEnd = "08:00"
	if err := st.PutSettings(ctx, set); err != nil {
		t.Fatalf("PutSettings: %v", err)
	}

	// Unread activity inside the 10h window; one read, one stale.
	readAt := now.Add(-time.Hour)
	recs := []storage.Notification{
		{ID: "a", UserID: "bob", Type: storage.TypeLike, CreatedAt: now.Add(-2 * time.Hour)},
		{ID: "b", UserID: "bob", Type: storage.TypeLike, CreatedAt: now.Add(-4 * time.Hour)},
		{ID: "c", UserID: "bob", Type: storage.TypeFollow, CreatedAt: now.Add(-1 * time.Hour)},
		{ID: "d", UserID: "bob", Type: storage.TypeComment, CreatedAt: now.Add(-3 * time.Hour), ReadAt: &readAt},
		{ID: "e", UserID: "bob", Type: storage.TypeMessage, CreatedAt: now.Add(-12 * time.Hour)},
		// A previous while-away digest never digests itself.
		{ID: "f", UserID: "bob", Type: storage.TypeWhileAwayDigest, CreatedAt: now.Add(-2 * time.Hour)},
	}
	for _, n := range recs {
		if err := st.InsertNotification(ctx, n); err != nil {
			t.Fatalf("InsertNotification: %v", err)
		}
	}

	if err := s.sendWhileAwayDigest(ctx, set, now); err != nil {
		t.Fatalf("sendWhileAwayDigest: %v", err)
	}
	got := fn.all()
	if len(got) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(got))
	}
	if got[0].Type != storage.TypeWhileAwayDigest {
		t.Fatalf("type = %s, want %s", got[0].Type, storage.TypeWhileAwayDigest)
	}
	const want = "While you were away: 2 new likes, 1 new follower"
	if got[0].Body != want {
		t.Fatalf("body = %q, want %q", got[0].Body, want)
	}
}

func TestSendFollowingDigestPublishesEvent(t *testing.T) {
	t.Parallel()
	st := storage.NewMemory()
	fn := &fakeNotifier{}
	bus := eventbus.New()
	s := New(Config{Enabled: true}, st, fn, logx.Nop(), bus)
	ctx := context.Background()
	now := time.Now().UTC()

	ch, unsub := bus.Subscribe(4)
	defer unsub()

	if err := st.PutFollow(ctx, "alice", "x"); err != nil {
		t.Fatalf("PutFollow: %v", err)
	}
	err := st.InsertEvent(ctx, storage.Event{ID: "e1", ActorID: "x", Type: storage.EventWorkoutCompleted, CreatedAt: now.Add(-time.Hour)})
	if err != nil {
		t.Fatalf("InsertEvent: %v", err)
	}
	if err := s.sendFollowingDigest(ctx, "alice", now); err != nil {
		t.Fatalf("sendFollowingDigest: %v", err)
	}

	select {
	case e := <-ch:
		if e.Type != "digest.sent" {
			t.Fatalf("event type = %q, want digest.sent", e.Type)
		}
		rec, ok := e.Data.(notify.Record)
		if !ok {
			t.Fatalf("event data = %T, want notify.Record", e.Data)
		}
		if rec.UserID != "alice" || rec.Type != string(storage.TypeFollowingDigest) {
			t.Fatalf("event record = %+v", rec)
		}
	default:
		t.Fatal("no event published")
	}
}

func TestSendWhileAwayDigestNoUnread(t *testing.T) {
	t.Parallel()
	s, st, fn := newTestService(t)
	ctx := context.Background()

	set := storage.DefaultSettings("carol")
	set.QuietHoursEnabled = true
	if err := st.PutSettings(ctx, set); err != nil {
		t.Fatalf("PutSettings: %v", err)
	}
	if err := s.sendWhileAwayDigest(ctx, set, time.Now().UTC()); err != nil {
		t.Fatalf("sendWhileAwayDigest: %v", err)
	}
	if got := fn.all(); len(got) != 0 {
		t.Fatalf("expected no notification, got %d", len(got))
	}
}
