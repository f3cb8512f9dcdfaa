package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fitfeed/internal/admin"
	"fitfeed/internal/config"
	"fitfeed/internal/eventbus"
	"fitfeed/internal/notify"
	"fitfeed/internal/push"
	rtsup "fitfeed/internal/runtime/supervisor"
	"fitfeed/internal/storage"
	"fitfeed/internal/worker"
	logx "fitfeed/pkg/logx"
)

// StopReason labels why the process is shutting down (for logs only).
type StopReason string

const (
	StopUnknown    StopReason = "unknown"
	StopSIGINT     StopReason = "sigint"
	StopSIGTERM    StopReason = "sigterm"
	StopFatalError StopReason = "fatal_error"
)

// App wires config, storage, the push pipeline, the worker, and the admin
// surface together and owns their lifecycles.
type App struct {
	cfgPath string

	cfgm *config.Manager
	sup  *rtsup.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	gateway push.Gateway
	notif   *notify.Service
	work    *worker.Service
	adm     *admin.Service
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))

	bus := eventbus.New()

	sc, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}
	log.Info("storage opened", logx.String("driver", sc.Driver))

	gateway := push.Nop()
	if cfg.Push.Enabled {
		gw, err := push.NewHTTP(mapGatewayConfig(cfg))
		if err != nil {
			return nil, err
		}
		gateway = gw
	} else {
		log.Info("push disabled; notifications are record-only")
	}

	ncfg, err := mapNotifyConfig(cfg)
	if err != nil {
		return nil, err
	}
	notif := notify.New(ncfg, store, gateway, log.With(logx.String("comp", "notify")), bus)

	wcfg, err := mapWorkerConfig(cfg)
	if err != nil {
		return nil, err
	}
	work := worker.New(wcfg, store, notif, log.With(logx.String("comp", "worker")), bus)

	a := &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		bus:     bus,
		store:   store,
		gateway: gateway,
		notif:   notif,
		work:    work,
	}
	a.adm = admin.New(mapAdminConfig(cfg), work, a.healthPayload, log.With(logx.String("comp", "admin")))
	return a, nil
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))

	// Transactional config reload: validate before commit/publish.
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		if _, err := mapStorageConfig(cfg); err != nil {
			return err
		}
		if _, err := mapNotifyConfig(cfg); err != nil {
			return err
		}
		if _, err := mapWorkerConfig(cfg); err != nil {
			return err
		}
		if cfg.Push.Enabled && strings.TrimSpace(cfg.Push.Endpoint) == "" {
			return fmt.Errorf("push.endpoint is required when push.enabled")
		}
		return nil
	})

	a.notif.Start(a.sup.Context())
	if a.work.Enabled() {
		a.work.Start(a.sup.Context())
	}
	if a.adm.Enabled() {
		a.adm.Start(a.sup.Context())
	}

	// Event log for observability/debug (components publish, app records).
	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	})

	// Hot-reload fan-out.
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config.
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						goto APPLY
					}
				}
			APPLY:
				a.applyReload(c, lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.log.Info("app started")
	return nil
}

func (a *App) applyReload(ctx context.Context, oldCfg, newCfg *config.Config) {
	sections, attrs := config.SummarizeChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Debug("config change summary", fields...)

	for _, s := range sections {
		switch s {
		case "storage":
			a.log.Warn("storage config changed; restart required for changes to take effect")
		case "push":
			// The gateway client is constructed once; endpoint/token changes
			// need a restart, pipeline knobs apply live.
			if oldCfg.Push.Endpoint != newCfg.Push.Endpoint || oldCfg.Push.Token != newCfg.Push.Token || oldCfg.Push.Enabled != newCfg.Push.Enabled {
				a.log.Warn("push gateway endpoint changed; restart required for changes to take effect")
			}
		}
	}

	a.logs.Apply(logx.Config{
		Level:   newCfg.Logging.Level,
		Console: newCfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: newCfg.Logging.File.Enabled,
			Path:    newCfg.Logging.File.Path,
		},
	})

	if ncfg, err := mapNotifyConfig(newCfg); err != nil {
		a.log.Warn("invalid push config; keeping previous", logx.Err(err))
	} else {
		a.notif.Apply(ncfg)
	}

	prevWorkEnabled := a.work.Enabled()
	if wcfg, err := mapWorkerConfig(newCfg); err != nil {
		a.log.Warn("invalid worker config; keeping previous", logx.Err(err))
	} else {
		a.work.Apply(wcfg)
		switch {
		case prevWorkEnabled && !wcfg.Enabled:
			a.log.Info("worker disabled via config")
			stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			a.work.Stop(stopCtx)
			cancel()
		case !prevWorkEnabled && wcfg.Enabled:
			a.log.Info("worker enabled via config")
			a.work.Start(ctx)
		}
	}

	a.adm.Reconfigure(ctx, mapAdminConfig(newCfg))

	a.log.Info("config reloaded", fields...)
}

func (a *App) healthPayload() map[string]any {
	out := map[string]any{
		"worker_enabled": a.work.Enabled(),
	}
	if a.sup != nil {
		c := a.sup.Counters()
		out["goroutines_active"] = c.Active
		if err := a.sup.Err(); err != nil {
			out["last_error"] = err.Error()
		}
	}
	return out
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))

	// Cancel the run context first so background loops start unwinding.
	a.sup.Cancel()

	// Bound each shutdown step so one component can't stall the whole stop.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()

		stepCtx := ctx
		var cancel context.CancelFunc
		if max > 0 {
			// Respect the caller's deadline; never extend it.
			if dl, ok := ctx.Deadline(); ok {
				if rem := time.Until(dl); rem < max {
					max = rem
				}
			}
			if max > 0 {
				stepCtx, cancel = context.WithTimeout(ctx, max)
				defer cancel()
			}
		}

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
		}
	}

	// Worker first (it feeds the pipeline), then drain the pipeline.
	step("worker", 2*time.Second, func(c context.Context) error { a.work.Stop(c); return nil })
	step("admin", 1*time.Second, func(c context.Context) error { a.adm.Stop(c); return nil })
	step("notify", 3*time.Second, func(c context.Context) error { a.notif.Stop(c); return nil })
	step("storage", 1*time.Second, func(c context.Context) error { return a.store.Close() })
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}
