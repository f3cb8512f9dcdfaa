// Package systemd wraps sd_notify so the daemon integrates with
// Type=notify units. All calls are no-ops outside systemd.
package systemd

import (
	"fmt"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
)

func NotifyReady() {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
}

func NotifyStopping() {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
}

// NotifyStatus updates the human-readable status line shown by systemctl.
func NotifyStatus(status string) {
	_, _ = daemon.SdNotify(false, "STATUS="+status)
}

// WatchdogInterval returns half the configured watchdog timeout, or 0 when
// no watchdog is set. Callers should ping at this cadence.
func WatchdogInterval() time.Duration {
	d, err := daemon.SdWatchdogEnabled(false)
	if err != nil || d <= 0 {
		return 0
	}
	return d / 2
}

func NotifyWatchdog() {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
}

// NotifyMainPID reassociates the unit's main PID (useful after re-exec).
func NotifyMainPID(pid int) {
	_, _ = daemon.SdNotify(false, fmt.Sprintf("MAINPID=%d", pid))
}
