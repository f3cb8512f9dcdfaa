package worker

import (
	"context"
	"time"

	"fitfeed/internal/notify"
	"fitfeed/internal/pushcopy"
	"fitfeed/internal/storage"
	logx "fitfeed/pkg/logx"
)

// MassWorkoutReminder sends a workout nudge to every user with reminders
// enabled, iterating synchronously with the same per-user failure
// isolation as the tick loop. It returns the number of users notified.
func (s *Service) MassWorkoutReminder(ctx context.Context, customMessage string) (int, error) {
	cfg, _ := s.snapshot()
	users, err := s.store.ReminderRecipients(ctx)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, set := range users {
		pc := pushcopy.NewNudge(customMessage)
		c := pc.Content()

		cctx, cancel := context.WithTimeout(ctx, cfg.CallTimeout)
		_, err := s.notifier.Create(cctx, notify.CreateParams{
			UserID: set.UserID,
			Type:   storage.TypeWorkoutReminder,
			Title:  c.Title,
			Body:   c.Body,
			Push:   pc,
		})
		cancel()
		if err != nil {
			s.log.Warn("workout reminder failed", logx.String("user", set.UserID), logx.Err(err))
			continue
		}
		sent++
	}
	s.log.Info("mass workout reminder done", logx.Int("sent", sent), logx.Int("eligible", len(users)))
	return sent, nil
}

// FeaturedSuggestionBlast pushes a featured-workout suggestion to every
// user with notifications enabled. This is the only deep-linkable push
// category. It returns the number of users notified.
func (s *Service) FeaturedSuggestionBlast(ctx context.Context, workoutName, deepLink, customCopy string) (int, error) {
	cfg, _ := s.snapshot()
	users, err := s.store.PushRecipients(ctx)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, set := range users {
		pc := pushcopy.NewFeaturedWorkout(workoutName, deepLink, customCopy)
		c := pc.Content()

		cctx, cancel := context.WithTimeout(ctx, cfg.CallTimeout)
		_, err := s.notifier.Create(cctx, notify.CreateParams{
			UserID: set.UserID,
			Type:   storage.TypeFeaturedWorkout,
			Title:  c.Title,
			Body:   c.Body,
			Push:   pc,
			Metadata: map[string]any{
				"workout_name": workoutName,
				"deep_link":    deepLink,
			},
		})
		cancel()
		if err != nil {
			s.log.Warn("featured blast failed", logx.String("user", set.UserID), logx.Err(err))
			continue
		}
		sent++
	}
	s.log.Info("featured suggestion blast done", logx.Int("sent", sent), logx.Int("eligible", len(users)))
	return sent, nil
}

// runPrune drops notifications older than the retention horizon.
func (s *Service) runPrune(ctx context.Context) {
	cfg, _ := s.snapshot()
	cutoff := time.Now().UTC().Add(-cfg.Retention)
	n, err := s.store.PruneNotifications(ctx, cutoff)
	if err != nil {
		s.log.Warn("notification prune failed", logx.Err(err))
		return
	}
	if n > 0 {
		s.log.Info("notifications pruned", logx.Int("removed", n), logx.Time("cutoff", cutoff))
	}
}
