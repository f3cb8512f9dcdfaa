package config

import (
	"sort"
	"strings"

	logx "fitfeed/pkg/logx"
)

// SummarizeChange returns a compact list of changed sections plus safe
// structured attrs for logging (never includes secrets like tokens).
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 5)
	attrs := make([]logx.Field, 0, 16)

	// Logging
	if oldCfg.Logging.Level != newCfg.Logging.Level ||
		oldCfg.Logging.Console != newCfg.Logging.Console ||
		oldCfg.Logging.File.Enabled != newCfg.Logging.File.Enabled ||
		strings.TrimSpace(oldCfg.Logging.File.Path) != strings.TrimSpace(newCfg.Logging.File.Path) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logx.level", newCfg.Logging.Level),
			logx.Bool("logx.console", newCfg.Logging.Console),
			logx.Bool("logx.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	// Storage
	if strings.TrimSpace(oldCfg.Storage.Driver) != strings.TrimSpace(newCfg.Storage.Driver) ||
		strings.TrimSpace(oldCfg.Storage.Path) != strings.TrimSpace(newCfg.Storage.Path) ||
		strings.TrimSpace(oldCfg.Storage.BusyTimeout) != strings.TrimSpace(newCfg.Storage.BusyTimeout) {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", strings.TrimSpace(newCfg.Storage.Driver)),
			logx.Bool("storage.path_set", strings.TrimSpace(newCfg.Storage.Path) != ""),
		)
	}

	// Push (never log token)
	o, n := oldCfg.Push, newCfg.Push
	o.Token, n.Token = "", ""
	tokenChanged := (strings.TrimSpace(oldCfg.Push.Token) != "") != (strings.TrimSpace(newCfg.Push.Token) != "")
	if o != n || tokenChanged {
		changed = append(changed, "push")
		attrs = append(attrs,
			logx.Bool("push.enabled", newCfg.Push.Enabled),
			logx.String("push.endpoint", strings.TrimSpace(newCfg.Push.Endpoint)),
			logx.Bool("push.token_set", strings.TrimSpace(newCfg.Push.Token) != ""),
			logx.Int("push.workers", newCfg.Push.Workers),
			logx.Int("push.rate_per_sec", newCfg.Push.RatePerSec),
		)
	}

	// Worker
	if oldCfg.Worker != newCfg.Worker {
		changed = append(changed, "worker")
		attrs = append(attrs,
			logx.Bool("worker.enabled", newCfg.Worker.Enabled),
			logx.String("worker.timezone", strings.TrimSpace(newCfg.Worker.Timezone)),
			logx.Int("worker.bundle_threshold", newCfg.Worker.BundleThreshold),
			logx.String("worker.bundle_window", strings.TrimSpace(newCfg.Worker.BundleWindow)),
		)
	}

	// Admin (never log token)
	if oldCfg.Admin.Enabled != newCfg.Admin.Enabled ||
		strings.TrimSpace(oldCfg.Admin.Addr) != strings.TrimSpace(newCfg.Admin.Addr) ||
		(strings.TrimSpace(oldCfg.Admin.Token) != "") != (strings.TrimSpace(newCfg.Admin.Token) != "") {
		changed = append(changed, "admin")
		attrs = append(attrs,
			logx.Bool("admin.enabled", newCfg.Admin.Enabled),
			logx.String("admin.addr", strings.TrimSpace(newCfg.Admin.Addr)),
			logx.Bool("admin.token_set", strings.TrimSpace(newCfg.Admin.Token) != ""),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}
