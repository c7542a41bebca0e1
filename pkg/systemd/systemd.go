// Package systemd speaks the sd_notify protocol. Every call is a no-op when
// the process was not started by systemd.
package systemd

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
)

// Notifier sends state changes to the service manager.
type Notifier struct {
	notify func(unsetEnv bool, state string) (bool, error)
}

func New() *Notifier {
	return &Notifier{notify: daemon.SdNotify}
}

// Ready reports that startup finished.
func (n *Notifier) Ready() (bool, error) { return n.send(daemon.SdNotifyReady) }

// Stopping reports that shutdown began.
func (n *Notifier) Stopping() (bool, error) { return n.send(daemon.SdNotifyStopping) }

// Watchdog pings the service watchdog.
func (n *Notifier) Watchdog() (bool, error) { return n.send(daemon.SdNotifyWatchdog) }

// Status sets the free-form status line shown by systemctl.
func (n *Notifier) Status(msg string) (bool, error) { return n.send("STATUS=" + msg) }

func (n *Notifier) send(state string) (bool, error) {
	if n == nil || n.notify == nil {
		return false, nil
	}
	return n.notify(false, state)
}

// Keepalive pings the watchdog every interval until ctx is done. It returns
// the first notify error.
func (n *Notifier) Keepalive(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return nil
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if _, err := n.Watchdog(); err != nil {
				return err
			}
		}
	}
}

// WatchdogInterval returns the interval configured by WatchdogSec, or 0.
func WatchdogInterval() time.Duration {
	d, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		return 0
	}
	return d
}
