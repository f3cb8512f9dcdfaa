package worker

import (
	"context"
	"fmt"
	"time"

	"fitfeed/internal/eventbus"
	"fitfeed/internal/notify"
	"fitfeed/internal/storage"
	logx "fitfeed/pkg/logx"
)

// FollowBundleBody names the most recent follower and folds the rest in.
func FollowBundleBody(lastFollower string, total int) string {
	if lastFollower == "" {
		lastFollower = "Someone"
	}
	return fmt.Sprintf("%s and %d others followed you", lastFollower, total-1)
}

// runBundler collapses bursts of follow notifications. Pending follow
// notifications from the last bundle window are grouped by recipient
// in-process; recipients at or above the threshold get one bundle
// notification and their originals are marked with the bundle's group key
// so they never push individually and never re-bundle.
func (s *Service) runBundler(ctx context.Context, now time.Time) {
	cfg, _ := s.snapshot()
	since := now.Add(-cfg.BundleWindow)
	pending, err := s.store.PendingFollowNotifications(ctx, since)
	if err != nil {
		s.log.Warn("bundler query failed", logx.Err(err))
		return
	}
	if len(pending) == 0 {
		return
	}

	// Group by recipient, preserving insertion order inside each group and
	// first-seen order across recipients.
	byUser := map[string][]storage.Notification{}
	var order []string
	for _, n := range pending {
		if _, seen := byUser[n.UserID]; !seen {
			order = append(order, n.UserID)
		}
		byUser[n.UserID] = append(byUser[n.UserID], n)
	}

	key := bundleKey(now)
	for _, userID := range order {
		items := byUser[userID]
		if len(items) < cfg.BundleThreshold {
			continue
		}
		if err := s.bundleOne(ctx, cfg, userID, items, key); err != nil {
			s.log.Warn("bundle failed", logx.String("user", userID), logx.Err(err))
		}
	}
}

func (s *Service) bundleOne(ctx context.Context, cfg Config, userID string, items []storage.Notification, key string) error {
	cctx, cancel := context.WithTimeout(ctx, cfg.CallTimeout)
	defer cancel()

	// Most recent follower = last item in insertion order.
	last := items[len(items)-1]
	body := FollowBundleBody(actorUsername(last), len(items))

	rec, err := s.notifier.Create(cctx, notify.CreateParams{
		UserID: userID,
		Type:   storage.TypeFollowBundle,
		Title:  "New followers",
		Body:   body,
		Metadata: map[string]any{
			"count":     len(items),
			"group_key": key,
		},
	})
	if err != nil {
		return fmt.Errorf("create bundle: %w", err)
	}

	ids := make([]string, 0, len(items))
	for _, n := range items {
		ids = append(ids, n.ID)
	}
	if err := s.store.SetGroupKey(cctx, ids, key); err != nil {
		// Originals stay pending and may re-bundle next pass.
		return fmt.Errorf("mark originals: %w", err)
	}

	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: "bundle.created", Time: time.Now(), Data: notify.Record{
			ID: rec.ID, UserID: userID, Type: string(storage.TypeFollowBundle), At: time.Now(),
		}})
	}
	s.log.Info("follow bundle created", logx.String("user", userID), logx.Int("count", len(items)), logx.String("key", key))
	return nil
}

// bundleKey derives the shared group key for one bundler pass:
// a minute-granularity timestamp string.
func bundleKey(now time.Time) string {
	return "follow:" + now.UTC().Format("2006-01-02T15:04")
}

func actorUsername(n storage.Notification) string {
	if n.Metadata == nil {
		return ""
	}
	if v, ok := n.Metadata["actor_username"].(string); ok {
		return v
	}
	return ""
}
