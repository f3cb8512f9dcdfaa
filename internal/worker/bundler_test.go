package worker

import (
	"context"
	"fmt"
	"testing"
	"time"

	"fitfeed/internal/storage"
)

func insertFollows(t *testing.T, st storage.Store, userID string, n int, at time.Time) []string {
	t.Helper()
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("%s-f%d", userID, i)
		err := st.InsertNotification(context.Background(), storage.Notification{
			ID:        id,
			UserID:    userID,
			Type:      storage.TypeFollow,
			Title:     "New follower",
			Body:      fmt.Sprintf("user%d started following you", i),
			CreatedAt: at.Add(time.Duration(i) * time.Minute),
			Metadata:  map[string]any{"actor_username": fmt.Sprintf("user%d", i)},
		})
		if err != nil {
			t.Fatalf("InsertNotification: %v", err)
		}
		ids = append(ids, id)
	}
	return ids
}

func TestBundlerBelowThreshold(t *testing.T) {
	t.Parallel()
	s, st, fn := newTestService(t)
	now := time.Now().UTC()

	insertFollows(t, st, "alice", 2, now.Add(-10*time.Minute))
	s.runBundler(context.Background(), now)

	if got := fn.all(); len(got) != 0 {
		t.Fatalf("expected no bundle below threshold, got %d", len(got))
	}
	pending, err := st.PendingFollowNotifications(context.Background(), now.Add(-30*time.Minute))
	if err != nil {
		t.Fatalf("PendingFollowNotifications: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("originals should be untouched, got %d pending", len(pending))
	}
}

func TestBundlerAtThreshold(t *testing.T) {
	t.Parallel()
	s, st, fn := newTestService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	ids := insertFollows(t, st, "alice", 3, now.Add(-10*time.Minute))
	s.runBundler(ctx, now)

	got := fn.all()
	if len(got) != 1 {
		t.Fatalf("expected 1 bundle, got %d", len(got))
	}
	if got[0].Type != storage.TypeFollowBundle {
		t.Fatalf("type = %s, want %s", got[0].Type, storage.TypeFollowBundle)
	}
	// Most recent follower is the last inserted.
	const wantBody = "user2 and 2 others followed you"
	if got[0].Body != wantBody {
		t.Fatalf("body = %q, want %q", got[0].Body, wantBody)
	}

	// All originals share the same non-empty group key and stop being pending.
	var key string
	for i, id := range ids {
		n, ok, err := st.NotificationByID(ctx, id)
		if err != nil || !ok {
			t.Fatalf("NotificationByID(%s): ok=%v err=%v", id, ok, err)
		}
		if n.GroupKey == "" {
			t.Fatalf("original %s has empty group key", id)
		}
		if i == 0 {
			key = n.GroupKey
		} else if n.GroupKey != key {
			t.Fatalf("group keys differ: %q vs %q", n.GroupKey, key)
		}
	}
	pending, err := st.PendingFollowNotifications(ctx, now.Add(-30*time.Minute))
	if err != nil {
		t.Fatalf("PendingFollowNotifications: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("bundled originals still pending: %d", len(pending))
	}
}

func TestBundlerIgnoresOldNotifications(t *testing.T) {
	t.Parallel()
	s, st, fn := newTestService(t)
	now := time.Now().UTC()

	// Three follows, but only two inside the 30-minute window.
	insertFollows(t, st, "alice", 2, now.Add(-5*time.Minute))
	insertFollows(t, st, "bob", 1, now.Add(-2*time.Hour))

	s.runBundler(context.Background(), now)
	if got := fn.all(); len(got) != 0 {
		t.Fatalf("expected no bundle, got %d", len(got))
	}
}

func TestBundlerPerRecipient(t *testing.T) {
	t.Parallel()
	s, st, fn := newTestService(t)
	now := time.Now().UTC()

	insertFollows(t, st, "alice", 3, now.Add(-20*time.Minute))
	insertFollows(t, st, "bob", 4, now.Add(-15*time.Minute))
	insertFollows(t, st, "carol", 1, now.Add(-10*time.Minute))

	s.runBundler(context.Background(), now)

	got := fn.all()
	if len(got) != 2 {
		t.Fatalf("expected bundles for alice and bob only, got %d", len(got))
	}
	byUser := map[string]string{}
	for _, p := range got {
		byUser[p.UserID] = p.Body
	}
	if byUser["alice"] != "user2 and 2 others followed you" {
		t.Fatalf("alice body = %q", byUser["alice"])
	}
	if byUser["bob"] != "user3 and 3 others followed you" {
		t.Fatalf("bob body = %q", byUser["bob"])
	}
}

func TestFollowBundleBody(t *testing.T) {
	t.Parallel()
	if got := FollowBundleBody("zoe", 3); got != "zoe and 2 others followed you" {
		t.Fatalf("got %q", got)
	}
	if got := FollowBundleBody("", 5); got != "Someone and 4 others followed you" {
		t.Fatalf("got %q", got)
	}
}
