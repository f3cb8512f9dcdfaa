package worker

import (
	"context"
	"runtime/debug"
	"time"

	"fitfeed/internal/storage"
	logx "fitfeed/pkg/logx"
)

// runTick is the once-a-minute heart of the worker:
//  1. Always: users whose quiet hours just ended (wall clock rounded down
//     to the nearest 5-minute boundary) get their while-away digest.
//  2. At the top of the hour: users whose digest_time matches the current
//     hour get their following-activity digest, gated by frequency.
//  3. Every 15 minutes: the follow bundler runs.
//
// A panic or per-user error never stops the loop; failed users are simply
// re-evaluated at their next matching tick. If a tick lands late and skips
// past a 5-minute boundary, that boundary is not backfilled.
func (s *Service) runTick(ctx context.Context, now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("tick panicked", logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
		}
	}()

	_, loc := s.snapshot()
	now = now.In(loc)

	s.runQuietEnds(ctx, now)
	if now.Minute() == 0 {
		s.runDigests(ctx, now)
	}
	if now.Minute()%15 == 0 {
		s.runBundler(ctx, now)
	}
}

// runQuietEnds fires while-away digests for users whose quiet hours end at
// the current 5-minute boundary. Each boundary is processed once even
// though several ticks share it.
func (s *Service) runQuietEnds(ctx context.Context, now time.Time) {
	boundary := RoundDownToFiveMinutes(now)
	if boundary.Equal(s.lastQuietBoundary) {
		return
	}
	s.lastQuietBoundary = boundary

	cfg, _ := s.snapshot()
	hhmm := FormatHHMM(boundary.Hour(), boundary.Minute())
	users, err := s.store.SettingsByQuietEnd(ctx, hhmm)
	if err != nil {
		s.log.Warn("quiet-end scan failed", logx.String("at", hhmm), logx.Err(err))
		return
	}
	for _, set := range users {
		cctx, cancel := context.WithTimeout(ctx, cfg.CallTimeout)
		err := s.sendWhileAwayDigest(cctx, set, now)
		cancel()
		if err != nil {
			s.log.Warn("while-away digest failed", logx.String("user", set.UserID), logx.Err(err))
		}
	}
}

// runDigests fires following-activity digests for users whose digest_time
// matches the current hour and whose frequency allows today.
func (s *Service) runDigests(ctx context.Context, now time.Time) {
	cfg, _ := s.snapshot()
	hhmm := FormatHHMM(now.Hour(), 0)
	users, err := s.store.SettingsByDigestHour(ctx, hhmm)
	if err != nil {
		s.log.Warn("digest scan failed", logx.String("at", hhmm), logx.Err(err))
		return
	}
	for _, set := range users {
		if !digestDueToday(set.FollowingDigestFrequency, now) {
			continue
		}
		cctx, cancel := context.WithTimeout(ctx, cfg.CallTimeout)
		err := s.sendFollowingDigest(cctx, set.UserID, now)
		cancel()
		if err != nil {
			s.log.Warn("following digest failed", logx.String("user", set.UserID), logx.Err(err))
		}
	}
}

// digestDueToday applies the frequency predicate. The 3x-week gate is
// evaluated against the UTC weekday regardless of the worker timezone.
func digestDueToday(freq storage.DigestFrequency, now time.Time) bool {
	switch freq {
	case storage.FrequencyDaily:
		return true
	case storage.FrequencyThreePerWeek:
		switch now.UTC().Weekday() {
		case time.Monday, time.Wednesday, time.Friday:
			return true
		}
		return false
	default:
		return false
	}
}
