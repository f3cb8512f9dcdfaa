package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"fitfeed/internal/admin"
	"fitfeed/internal/config"
	"fitfeed/internal/notify"
	"fitfeed/internal/push"
	"fitfeed/internal/storage"
	"fitfeed/internal/worker"
)

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	if cfg == nil {
		return storage.Config{}, nil
	}
	busy, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busy,
	}, nil
}

func mapNotifyConfig(cfg *config.Config) (notify.Config, error) {
	if cfg == nil {
		return notify.Config{}, nil
	}
	p := cfg.Push
	retryBase, err := config.ParseDurationOrDefault("push.retry_base", p.RetryBase, 500*time.Millisecond)
	if err != nil {
		return notify.Config{}, err
	}
	retryMaxDelay, err := config.ParseDurationOrDefault("push.retry_max_delay", p.RetryMaxDelay, 10*time.Second)
	if err != nil {
		return notify.Config{}, err
	}
	sendTimeout, err := config.ParseDurationOrDefault("push.send_timeout", p.SendTimeout, 10*time.Second)
	if err != nil {
		return notify.Config{}, err
	}
	if p.RetryMax < 0 {
		return notify.Config{}, fmt.Errorf("push.retry_max must be >= 0")
	}
	return notify.Config{
		Enabled:       p.Enabled,
		Workers:       p.Workers,
		QueueSize:     p.QueueSize,
		RatePerSec:    p.RatePerSec,
		RetryMax:      p.RetryMax,
		RetryBase:     retryBase,
		RetryMaxDelay: retryMaxDelay,
		SendTimeout:   sendTimeout,
	}, nil
}

func mapGatewayConfig(cfg *config.Config) push.Config {
	token := strings.TrimSpace(cfg.Push.Token)
	if token == "" {
		token = strings.TrimSpace(os.Getenv("PUSH_GATEWAY_TOKEN"))
	}
	return push.Config{
		Endpoint: cfg.Push.Endpoint,
		Token:    token,
	}
}

func mapWorkerConfig(cfg *config.Config) (worker.Config, error) {
	if cfg == nil {
		return worker.Config{}, nil
	}
	w := cfg.Worker
	if tz := strings.TrimSpace(w.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return worker.Config{}, fmt.Errorf("worker.timezone: invalid %q: %w", tz, err)
		}
	}
	if w.BundleThreshold < 0 {
		return worker.Config{}, fmt.Errorf("worker.bundle_threshold must be >= 0")
	}
	window, err := config.ParseDurationOrDefault("worker.bundle_window", w.BundleWindow, 30*time.Minute)
	if err != nil {
		return worker.Config{}, err
	}
	lookback, err := config.ParseDurationOrDefault("worker.digest_lookback", w.DigestLookback, 24*time.Hour)
	if err != nil {
		return worker.Config{}, err
	}
	callTimeout, err := config.ParseDurationOrDefault("worker.call_timeout", w.CallTimeout, 10*time.Second)
	if err != nil {
		return worker.Config{}, err
	}
	retention, err := config.ParseDurationOrDefault("worker.retention", w.Retention, 90*24*time.Hour)
	if err != nil {
		return worker.Config{}, err
	}
	return worker.Config{
		Enabled:         w.Enabled,
		Timezone:        w.Timezone,
		BundleThreshold: w.BundleThreshold,
		BundleWindow:    window,
		DigestLookback:  lookback,
		CallTimeout:     callTimeout,
		Retention:       retention,
	}, nil
}

func mapAdminConfig(cfg *config.Config) admin.Config {
	return admin.Config{
		Enabled: cfg.Admin.Enabled,
		Addr:    cfg.Admin.Addr,
		Token:   cfg.Admin.Token,
	}
}
