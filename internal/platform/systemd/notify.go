package systemd

import (
	"log/slog"

	"github.com/coreos/go-systemd/v22/daemon"
)

// Notifier reports launcher readiness to a supervising service manager.
type Notifier struct {
	notify func(unsetEnvironment bool, state string) (bool, error)
}

// NewNotifier returns a Notifier backed by sd_notify. Without
// $NOTIFY_SOCKET every call is a no-op.
func NewNotifier() *Notifier {
	return &Notifier{notify: daemon.SdNotify}
}

// Ready tells systemd that all services have been launched.
func (n *Notifier) Ready() {
	n.send(daemon.SdNotifyReady)
}

// Stopping tells systemd that shutdown has begun.
func (n *Notifier) Stopping() {
	n.send(daemon.SdNotifyStopping)
}

// Status publishes a free-form status line.
func (n *Notifier) Status(text string) {
	n.send("STATUS=" + text)
}

func (n *Notifier) send(state string) {
	sent, err := n.notify(false, state)
	if err != nil {
		slog.Debug("sd_notify failed", "state", state, "error", err)
		return
	}
	if sent {
		slog.Debug("sd_notify sent", "state", state)
	}
}
