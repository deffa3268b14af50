// Package systemd reports service state to systemd through sd_notify.
//
// Every call is a no-op when the process was not started by systemd with
// Type=notify (NOTIFY_SOCKET unset).
package systemd

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	logx "batteryfriend/pkg/logx"
)

type Notifier struct {
	log    logx.Logger
	notify func(unsetEnv bool, state string) (bool, error)
	// watchdog reports the interval systemd expects pings at; 0 when disabled.
	watchdog func(unsetEnv bool) (time.Duration, error)
}

func New(log logx.Logger) *Notifier {
	return &Notifier{
		log:      log,
		notify:   daemon.SdNotify,
		watchdog: daemon.SdWatchdogEnabled,
	}
}

// Ready tells systemd that startup finished.
func (n *Notifier) Ready() { n.send(daemon.SdNotifyReady) }

// Stopping tells systemd that shutdown began.
func (n *Notifier) Stopping() { n.send(daemon.SdNotifyStopping) }

// Status sets the free-form status line shown by systemctl status.
func (n *Notifier) Status(msg string) { n.send("STATUS=" + msg) }

// WatchdogInterval returns how often RunWatchdog pings, 0 when the unit has
// no WatchdogSec.
func (n *Notifier) WatchdogInterval() time.Duration {
	d, err := n.watchdog(false)
	if err != nil {
		n.log.Warn("systemd watchdog misconfigured", logx.Err(err))
		return 0
	}
	return d / 2
}

// RunWatchdog pings the systemd watchdog at half its timeout until ctx is
// canceled. It returns immediately when the watchdog is disabled.
func (n *Notifier) RunWatchdog(ctx context.Context) error {
	every := n.WatchdogInterval()
	if every <= 0 {
		return nil
	}
	n.log.Debug("systemd watchdog enabled", logx.Duration("interval", every))

	t := time.NewTicker(every)
	defer t.Stop()
	for {
		n.send(daemon.SdNotifyWatchdog)
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}

func (n *Notifier) send(state string) {
	sent, err := n.notify(false, state)
	if err != nil {
		n.log.Warn("sd_notify failed", logx.String("state", state), logx.Err(err))
		return
	}
	if sent {
		n.log.Trace("sd_notify", logx.String("state", state))
	}
}
