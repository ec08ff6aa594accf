// Package systemd integrates devup with a surrounding systemd: lifecycle
// events go to journald and readiness is reported through sd_notify.
package systemd

import (
	"fmt"
	"maps"

	"github.com/coreos/go-systemd/v22/journal"

	"github.com/videoforge/devup/internal/eventlog"
)

// SyslogIdentifier tags every entry devup writes to the journal.
const SyslogIdentifier = "devup"

// JournalEventLog implements eventlog.EventLog on top of the native
// journald protocol.
type JournalEventLog struct {
	send func(message string, priority journal.Priority, vars map[string]string) error
}

var _ eventlog.EventLog = (*JournalEventLog)(nil)

// OpenJournal returns an event log writing to journald. It fails when the
// journal socket is not reachable so callers can fall back.
func OpenJournal() (*JournalEventLog, error) {
	if !journal.Enabled() {
		return nil, fmt.Errorf("journald socket not available")
	}
	return &JournalEventLog{send: journal.Send}, nil
}

func (j *JournalEventLog) Write(message string, fields map[string]string) error {
	vars := map[string]string{"SYSLOG_IDENTIFIER": SyslogIdentifier}
	maps.Copy(vars, fields)
	return j.send(message, journal.PriInfo, vars)
}

func (j *JournalEventLog) Close() error { return nil }
