package notify

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"fitfeed/internal/eventbus"
	"fitfeed/internal/push"
	"fitfeed/internal/pushcopy"
	rtsup "fitfeed/internal/runtime/supervisor"
	"fitfeed/internal/storage"
	logx "fitfeed/pkg/logx"
)

var (
	ErrQueueFull = errors.New("notify queue full")
	ErrStopped   = errors.New("notify stopped")
)

type job struct {
	id  string
	msg push.Message
}

// Service persists notifications and drives the async push pipeline:
// queue + worker pool + rate limit + retry.
//
// It is safe for concurrent use.
type Service struct {
	mu sync.Mutex

	log     logx.Logger
	store   storage.Store
	gateway push.Gateway
	bus     eventbus.Bus

	cfg     Config
	limiter *rate.Limiter

	accepting bool
	sendWG    sync.WaitGroup

	queue    chan job
	sup      *rtsup.Supervisor
	stopDone chan struct{} // non-nil while stopping
}

func New(cfg Config, store storage.Store, gateway push.Gateway, log logx.Logger, bus eventbus.Bus) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{
		log:     log,
		store:   store,
		gateway: gateway,
		bus:     bus,
	}
	s.applyLocked(cfg)
	return s
}

func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.applyLocked(cfg)
	s.mu.Unlock()
}

func (s *Service) applyLocked(cfg Config) {
	// Defaults
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 512
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 10
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 500 * time.Millisecond
	}
	if cfg.RetryMaxDelay <= 0 {
		cfg.RetryMaxDelay = 10 * time.Second
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}

	s.cfg = cfg
	// Token bucket: burst = rate per sec, so short spikes don't block too hard.
	s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
}

func (s *Service) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	// Start is idempotent.
	s.mu.Lock()
	// If stopping, wait for it to finish before restarting.
	if s.stopDone != nil {
		done := s.stopDone
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return
		}
		s.mu.Lock()
	}
	if s.queue != nil {
		s.mu.Unlock()
		return
	}

	s.queue = make(chan job, s.cfg.QueueSize)
	s.accepting = true
	workers := s.cfg.Workers
	if workers <= 0 {
		workers = 2
	}

	s.sup = rtsup.New(ctx,
		rtsup.WithLogger(s.log.With(logx.String("comp", "notify"))),
		// Push failures are best-effort; never take down the app.
		rtsup.WithCancelOnError(false),
	)
	sup := s.sup
	q := s.queue
	s.mu.Unlock()

	for i := 0; i < workers; i++ {
		sup.Go0("push.worker", func(c context.Context) {
			s.workerLoop(c, q)
		})
	}
}

// Stop stops intake and drains the queue best-effort until ctx deadline.
func (s *Service) Stop(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	q := s.queue
	sup := s.sup
	if q == nil {
		s.mu.Unlock()
		return
	}
	// If already stopping, wait.
	if s.stopDone != nil {
		done := s.stopDone
		s.mu.Unlock()
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		}
	}

	done := make(chan struct{})
	s.stopDone = done
	// Block new creates from enqueueing.
	s.accepting = false
	s.mu.Unlock()

	// Shutdown happens asynchronously so callers can time out without leaking state.
	go func() {
		defer close(done)
		// Wait for in-flight enqueues to finish, then close the queue so workers can drain.
		s.sendWG.Wait()
		func() {
			defer func() { _ = recover() }()
			close(q)
		}()
		if sup != nil {
			_ = sup.Wait(context.Background())
		}

		s.mu.Lock()
		s.queue = nil
		s.stopDone = nil
		s.sup = nil
		s.mu.Unlock()
	}()

	select {
	case <-done:
		return
	case <-ctx.Done():
		// Force-stop workers mid-drain.
		if sup != nil {
			sup.Cancel()
		}
		return
	}
}

// Create persists a notification and, when the user's settings allow it,
// queues a push. The record is always written; only the push is conditional.
//
// Quiet hours suppress the push but never the record. A non-empty GroupKey
// means the record was absorbed into a bundle and is never pushed on its own.
func (s *Service) Create(ctx context.Context, p CreateParams) (storage.Notification, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(p.UserID) == "" {
		return storage.Notification{}, errors.New("notify: user id is required")
	}
	if p.Type == "" {
		return storage.Notification{}, errors.New("notify: type is required")
	}

	now := time.Now().UTC()
	rec := storage.Notification{
		ID:        uuid.NewString(),
		UserID:    p.UserID,
		Type:      p.Type,
		Title:     p.Title,
		Body:      p.Body,
		CreatedAt: now,
		GroupKey:  p.GroupKey,
		Metadata:  p.Metadata,
	}
	if p.Push != nil {
		c := p.Push.Content()
		if rec.Title == "" {
			rec.Title = c.Title
		}
		if rec.Body == "" {
			rec.Body = c.Body
		}
	}

	if err := s.store.InsertNotification(ctx, rec); err != nil {
		return storage.Notification{}, err
	}
	s.publish("notify.created", rec, "")

	// Bundled records ride in their bundle's push.
	if rec.GroupKey != "" {
		return rec, nil
	}

	set, ok, err := s.store.Settings(ctx, p.UserID)
	if err != nil {
		s.log.Warn("settings lookup failed, skipping push", logx.String("user", p.UserID), logx.Err(err))
		return rec, nil
	}
	if !ok {
		set = storage.DefaultSettings(p.UserID)
	}
	if !set.NotificationsEnabled {
		return rec, nil
	}
	if p.Type == storage.TypeWorkoutReminder && !set.WorkoutRemindersEnabled {
		return rec, nil
	}

	if set.QuietHoursEnabled {
		quiet, qerr := inQuietHours(set, now)
		if qerr != nil {
			// Malformed quiet-hours times: deliver rather than silently drop forever.
			s.log.Warn("invalid quiet hours, delivering anyway", logx.String("user", p.UserID), logx.Err(qerr))
		} else if quiet {
			s.publish("notify.suppressed", rec, "")
			return rec, nil
		}
	}

	msg := buildMessage(rec, p.Push)
	if err := s.enqueue(ctx, rec, msg); err != nil {
		return rec, err
	}
	return rec, nil
}

func (s *Service) enqueue(ctx context.Context, rec storage.Notification, msg push.Message) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	s.mu.Lock()
	if !s.cfg.Enabled {
		s.mu.Unlock()
		return nil
	}
	if !s.accepting || s.queue == nil {
		s.mu.Unlock()
		return ErrStopped
	}
	q := s.queue
	s.sendWG.Add(1)
	s.mu.Unlock()
	defer s.sendWG.Done()

	s.publish("push.queued", rec, "")
	select {
	case q <- job{id: rec.ID, msg: msg}:
		return nil
	default:
		s.publish("push.dropped", rec, ErrQueueFull.Error())
		return ErrQueueFull
	}
}

// buildMessage shapes the wire payload. Callers may pass explicit copy; the
// fallback keeps the stored title/body and tags the payload by type.
func buildMessage(rec storage.Notification, pc pushcopy.Push) push.Message {
	msg := push.Message{
		UserID: rec.UserID,
		Title:  rec.Title,
		Body:   rec.Body,
	}
	if pc != nil {
		c := pc.Content()
		msg.Title, msg.Body = c.Title, c.Body
		msg.Data = pc.Payload()
		return msg
	}
	msg.Data = map[string]string{"category": string(rec.Type)}
	return msg
}

func (s *Service) workerLoop(ctx context.Context, q <-chan job) {
	if ctx == nil {
		ctx = context.Background()
	}
	if q == nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-q:
			if !ok {
				return
			}
			s.sendWithRetry(ctx, j)
		}
	}
}

func (s *Service) sendWithRetry(runCtx context.Context, j job) {
	// config snapshot for this send
	s.mu.Lock()
	cfg := s.cfg
	lim := s.limiter
	gw := s.gateway
	log := s.log
	s.mu.Unlock()

	if gw == nil {
		return
	}

	maxAttempts := 1
	if cfg.RetryMax > 0 {
		maxAttempts = 1 + cfg.RetryMax
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		// Rate limit (honor cancellation).
		if lim != nil {
			if err := lim.Wait(runCtx); err != nil {
				return
			}
		}

		// Bound per-send call. Keep tight to avoid hanging workers.
		callCtx, cancel := context.WithTimeout(runCtx, cfg.SendTimeout)
		err := gw.Send(callCtx, j.msg)
		cancel()
		if err == nil {
			s.markDelivered(j.id)
			return
		}
		lastErr = err
		log.Debug("push send failed", logx.Err(err), logx.Int("attempt", attempt), logx.Int("max", maxAttempts))

		if attempt >= maxAttempts {
			break
		}

		delay := retryDelay(cfg, attempt)
		if delay <= 0 {
			continue
		}
		t := time.NewTimer(delay)
		select {
		case <-t.C:
		case <-runCtx.Done():
			if !t.Stop() {
				<-t.C
			}
			return
		}
	}

	if lastErr != nil {
		s.publishID("push.failed", j.id, j.msg.UserID, lastErr.Error())
		s.log.Warn("push delivery gave up", logx.String("notification", j.id), logx.String("user", j.msg.UserID), logx.Err(lastErr))
	}
}

func (s *Service) markDelivered(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	now := time.Now().UTC()
	if err := s.store.MarkPushDelivered(ctx, id, now); err != nil {
		s.log.Warn("mark delivered failed", logx.String("notification", id), logx.Err(err))
	}
	s.publishID("push.sent", id, "", "")
}

func (s *Service) publish(typ string, rec storage.Notification, errText string) {
	if s.bus == nil {
		return
	}
	now := time.Now()
	s.bus.Publish(eventbus.Event{Type: typ, Time: now, Data: Record{
		ID: rec.ID, UserID: rec.UserID, Type: string(rec.Type), At: now, Error: errText,
	}})
}

func (s *Service) publishID(typ, id, userID, errText string) {
	if s.bus == nil {
		return
	}
	now := time.Now()
	s.bus.Publish(eventbus.Event{Type: typ, Time: now, Data: Record{
		ID: id, UserID: userID, At: now, Error: errText,
	}})
}

func retryDelay(cfg Config, attempt int) time.Duration {
	// attempt starts at 1 (first attempt), delay is for the NEXT attempt.
	base := cfg.RetryBase
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	maxD := cfg.RetryMaxDelay
	if maxD <= 0 {
		maxD = 10 * time.Second
	}
	// Exponential backoff: base * 2^(attempt-1)
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= maxD {
			d = maxD
			break
		}
	}
	// Jitter 0.7..1.3
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	j := 0.7 + rng.Float64()*0.6
	d = time.Duration(float64(d) * j)
	if d < 0 {
		return 0
	}
	if d > maxD {
		d = maxD
	}
	return d
}
