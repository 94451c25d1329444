// Package systemd reports service state to the systemd manager. Outside a
// Type=notify unit every call is a no-op.
package systemd

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
)

func notify(state string) (bool, error) { return daemon.SdNotify(false, state) }

func Ready() (bool, error)     { return notify(daemon.SdNotifyReady) }
func Stopping() (bool, error)  { return notify(daemon.SdNotifyStopping) }
func Reloading() (bool, error) { return notify(daemon.SdNotifyReloading) }

// Status sets the free-form status line shown by systemctl status.
func Status(s string) (bool, error) { return notify("STATUS=" + s) }

// Watchdog pings the manager at half the configured interval until ctx
// ends. It returns at once when the unit has no watchdog.
func Watchdog(ctx context.Context) error {
	every, err := daemon.SdWatchdogEnabled(false)
	if err != nil || every <= 0 {
		return err
	}
	t := time.NewTicker(every / 2)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			_, _ = notify(daemon.SdNotifyWatchdog)
		}
	}
}
