// Package systemd reports service state to systemd over the notify socket.
// Outside a Type=notify unit every call is a no-op.
package systemd

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	logx "stepsync/pkg/logx"
)

type Notifier struct {
	log logx.Logger
}

func NewNotifier(log logx.Logger) *Notifier {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Notifier{log: log.With(logx.String("comp", "systemd"))}
}

func (n *Notifier) Ready() bool    { return n.notify(daemon.SdNotifyReady) }
func (n *Notifier) Stopping() bool { return n.notify(daemon.SdNotifyStopping) }

// Status sets the free-form status line shown by systemctl status.
func (n *Notifier) Status(s string) bool { return n.notify("STATUS=" + s) }

func (n *Notifier) notify(state string) bool {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		n.log.Warn("sd_notify failed", logx.String("state", state), logx.Err(err))
		return false
	}
	return sent
}

// WatchdogInterval is the keepalive period: half of WatchdogSec, or zero
// when the unit has no watchdog.
func (n *Notifier) WatchdogInterval() time.Duration {
	d, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		n.log.Warn("watchdog detection failed", logx.Err(err))
		return 0
	}
	return d / 2
}

// Watchdog pings WATCHDOG=1 until ctx is done. A ping is withheld while
// alive reports an error, so systemd restarts a stalled process once
// WatchdogSec passes. A nil alive always pings. It returns at once when the
// unit has no watchdog.
func (n *Notifier) Watchdog(ctx context.Context, alive func() error) error {
	every := n.WatchdogInterval()
	if every <= 0 {
		return nil
	}
	n.log.Debug("watchdog enabled", logx.Duration("every", every))

	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if alive != nil {
				if err := alive(); err != nil {
					n.log.Warn("watchdog ping withheld", logx.Err(err))
					continue
				}
			}
			n.notify(daemon.SdNotifyWatchdog)
		}
	}
}
