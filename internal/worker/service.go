package worker

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"fitfeed/internal/eventbus"
	"fitfeed/internal/storage"
	logx "fitfeed/pkg/logx"
)

// Service drives all time-based notification triggers from a single
// in-process cron: one tick every minute plus a nightly prune. Ticks do
// not overlap; a tick still running when the next minute fires causes
// that minute to be skipped rather than queued.
type Service struct {
	mu sync.Mutex

	log      logx.Logger
	store    storage.Store
	notifier Notifier
	bus      eventbus.Bus

	cfg    Config
	loc    *time.Location
	parser cron.Parser

	c         *cron.Cron
	runCtx    context.Context
	runCancel context.CancelFunc

	lastQuietBoundary time.Time
}

func New(cfg Config, store storage.Store, notifier Notifier, log logx.Logger, bus eventbus.Bus) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{
		log:      log,
		store:    store,
		notifier: notifier,
		bus:      bus,
		parser:   cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
	}
	s.applyLocked(cfg)
	return s
}

func (s *Service) Enabled() bool {
	s.mu.Lock()
	en := s.cfg.Enabled
	s.mu.Unlock()
	return en
}

// snapshot copies the config and location under the lock. Ticks and jobs
// work off the copy so a concurrent Apply never changes their inputs
// mid-run.
func (s *Service) snapshot() (Config, *time.Location) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg, s.loc
}

func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	oldTZ := strings.TrimSpace(s.cfg.Timezone)
	s.applyLocked(cfg)

	if s.c == nil {
		return
	}
	if oldTZ != strings.TrimSpace(cfg.Timezone) {
		// Restart cron in the new location.
		s.stopCronLocked()
		s.startCronLocked()
	}
}

func (s *Service) applyLocked(cfg Config) {
	// Defaults
	if cfg.Timezone == "" {
		cfg.Timezone = "UTC"
	}
	if cfg.BundleThreshold <= 0 {
		cfg.BundleThreshold = 3
	}
	if cfg.BundleWindow <= 0 {
		cfg.BundleWindow = 30 * time.Minute
	}
	if cfg.DigestLookback <= 0 {
		cfg.DigestLookback = 24 * time.Hour
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 10 * time.Second
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 90 * 24 * time.Hour
	}

	s.cfg = cfg
	s.loc = loadLocation(cfg.Timezone, s.log)
}

// Start is idempotent. It does nothing when the worker is disabled.
func (s *Service) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return
	}
	if !s.cfg.Enabled {
		return
	}
	s.runCtx, s.runCancel = context.WithCancel(ctx)
	s.startCronLocked()
	s.log.Info("worker started", logx.String("tz", s.loc.String()), logx.Int("bundle_threshold", s.cfg.BundleThreshold))
}

// Stop cancels in-flight work and waits for running jobs to finish or
// ctx to expire.
func (s *Service) Stop(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	c := s.c
	cancel := s.runCancel
	s.c = nil
	s.runCtx = nil
	s.runCancel = nil
	s.mu.Unlock()
	if c == nil {
		return
	}

	if cancel != nil {
		cancel()
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
	s.log.Info("worker stopped")
}

func (s *Service) startCronLocked() {
	s.c = cron.New(
		cron.WithParser(s.parser),
		cron.WithLocation(s.loc),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	runCtx := s.runCtx

	// Every minute: the tick.
	_, _ = s.c.AddFunc("* * * * *", func() {
		if runCtx.Err() != nil {
			return
		}
		s.runTick(runCtx, time.Now())
	})
	// Nightly: retention prune.
	_, _ = s.c.AddFunc("0 3 * * *", func() {
		if runCtx.Err() != nil {
			return
		}
		s.runPrune(runCtx)
	})
	s.c.Start()
}

func (s *Service) stopCronLocked() {
	if s.c == nil {
		return
	}
	<-s.c.Stop().Done()
	s.c = nil
}

func loadLocation(tz string, log logx.Logger) *time.Location {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		if !log.IsZero() {
			log.Warn("invalid timezone, falling back to UTC", logx.String("tz", tz), logx.Err(err))
		}
		return time.UTC
	}
	return loc
}
