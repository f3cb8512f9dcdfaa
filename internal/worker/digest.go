package worker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fitfeed/internal/eventbus"
	"fitfeed/internal/notify"
	"fitfeed/internal/pushcopy"
	"fitfeed/internal/storage"
	logx "fitfeed/pkg/logx"
)

// FollowingDigestBody composes the following-activity digest line.
// Zero counts are suppressed; both zero yields "" (callers skip the
// notification entirely).
func FollowingDigestBody(workouts, posts int) string {
	var parts []string
	switch {
	case workouts == 1:
		parts = append(parts, "1 person you follow worked out")
	case workouts > 1:
		parts = append(parts, fmt.Sprintf("%d people you follow worked out", workouts))
	}
	switch {
	case posts == 1:
		parts = append(parts, "1 new post")
	case posts > 1:
		parts = append(parts, fmt.Sprintf("%d new posts", posts))
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, " • ") + " today"
}

// WhileAwayBody composes the while-away digest line from unread counts
// grouped by type. Recognized types are listed in fixed priority order;
// when none of them is present the total falls back to a generic phrase.
func WhileAwayBody(counts map[storage.NotificationType]int) string {
	total := 0
	for _, n := range counts {
		total += n
	}
	if total == 0 {
		return ""
	}

	var parts []string
	add := func(n int, singular, plural string) {
		if n <= 0 {
			return
		}
		if n == 1 {
			parts = append(parts, "1 new "+singular)
			return
		}
		parts = append(parts, fmt.Sprintf("%d new %s", n, plural))
	}
	add(counts[storage.TypeLike], "like", "likes")
	add(counts[storage.TypeComment], "comment", "comments")
	add(counts[storage.TypeFollow], "follower", "followers")
	add(counts[storage.TypeMessage], "message", "messages")
	if len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("%d notifications", total))
	}
	return "While you were away: " + strings.Join(parts, ", ")
}

// sendFollowingDigest summarizes followed-account activity over the
// lookback window into one notification. Zero activity is a silent no-op.
func (s *Service) sendFollowingDigest(ctx context.Context, userID string, now time.Time) error {
	following, err := s.store.Following(ctx, userID)
	if err != nil {
		return fmt.Errorf("following: %w", err)
	}
	if len(following) == 0 {
		return nil
	}

	cfg, _ := s.snapshot()
	from := now.Add(-cfg.DigestLookback)
	workouts, err := s.store.CountEventsByActors(ctx, storage.EventWorkoutCompleted, following, from, now)
	if err != nil {
		return fmt.Errorf("count workouts: %w", err)
	}
	posts, err := s.store.CountEventsByActors(ctx, storage.EventPostCreated, following, from, now)
	if err != nil {
		return fmt.Errorf("count posts: %w", err)
	}

	body := FollowingDigestBody(workouts, posts)
	if body == "" {
		return nil
	}
	title := pushcopy.FollowingDigestTitle()
	rec, err := s.notifier.Create(ctx, notify.CreateParams{
		UserID: userID,
		Type:   storage.TypeFollowingDigest,
		Title:  title,
		Body:   body,
		Push:   pushcopy.NewDigest(title, body),
		Metadata: map[string]any{
			"workouts": workouts,
			"posts":    posts,
		},
	})
	if err != nil {
		return err
	}
	s.publishDigestSent(rec)
	s.log.Info("following digest sent", logx.String("user", userID), logx.Int("workouts", workouts), logx.Int("posts", posts))
	return nil
}

// sendWhileAwayDigest summarizes unread notifications that accumulated
// during the user's quiet hours. Zero unread is a silent no-op.
func (s *Service) sendWhileAwayDigest(ctx context.Context, set storage.NotificationSettings, now time.Time) error {
	span, err := QuietSpanHours(set.QuietHoursStart, set.QuietHoursEnd)
	if err != nil {
		return fmt.Errorf("quiet hours: %w", err)
	}
	if span <= 0 {
		return nil
	}

	from := now.Add(-time.Duration(span) * time.Hour)
	counts, err := s.store.UnreadCountsByType(ctx, set.UserID, from, now, storage.TypeWhileAwayDigest)
	if err != nil {
		return fmt.Errorf("unread counts: %w", err)
	}
	body := WhileAwayBody(counts)
	if body == "" {
		return nil
	}

	title := pushcopy.WhileAwayTitle()
	rec, err := s.notifier.Create(ctx, notify.CreateParams{
		UserID: set.UserID,
		Type:   storage.TypeWhileAwayDigest,
		Title:  title,
		Body:   body,
		Push:   pushcopy.NewDigest(title, body),
	})
	if err != nil {
		return err
	}
	s.publishDigestSent(rec)
	s.log.Info("while-away digest sent", logx.String("user", set.UserID), logx.Int("hours", span))
	return nil
}

func (s *Service) publishDigestSent(rec storage.Notification) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{Type: "digest.sent", Time: time.Now(), Data: notify.Record{
		ID: rec.ID, UserID: rec.UserID, Type: string(rec.Type), At: time.Now(),
	}})
}
