package eventlog

import (
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"
)

// EventRecord represents a single recorded event.
type EventRecord struct {
	Timestamp time.Time
	Message   string
	Fields    map[string]string
}

// EventLog records launcher lifecycle events. The journald implementation
// lives in internal/platform/systemd; callers only see domain concepts.
type EventLog interface {
	// Write sends a structured entry to the backing store.
	Write(message string, fields map[string]string) error

	// Close releases any resources.
	Close() error
}

// -----------------------------------------------------------------------------
// Lifecycle helpers (semantic)
// -----------------------------------------------------------------------------

// Lifecycle event constants.
const (
	EventState    = "state"    // Launcher state transition
	EventStarted  = "started"  // Service started in the background
	EventSignaled = "signaled" // Termination requested for a service
	EventExited   = "exited"   // Service exit observed during shutdown
)

// Event field names for devup events. Journald requires upper-case keys.
const (
	FieldEvent    = "DEVUP_EVENT"
	FieldState    = "DEVUP_STATE"
	FieldRole     = "DEVUP_ROLE"
	FieldCommand  = "DEVUP_COMMAND"
	FieldDir      = "DEVUP_DIR"
	FieldPID      = "DEVUP_PID"
	FieldSignal   = "DEVUP_SIGNAL"
	FieldExitCode = "DEVUP_EXIT_CODE"
)

// EmitState writes a launcher state transition.
func EmitState(log EventLog, state string) error {
	return log.Write("Launcher entered "+state, map[string]string{
		FieldEvent: EventState,
		FieldState: state,
	})
}

// EmitStarted writes a service started event.
func EmitStarted(log EventLog, role string, command []string, dir string, pid int) error {
	return log.Write("Service "+role+" started", map[string]string{
		FieldEvent:   EventStarted,
		FieldRole:    role,
		FieldCommand: strings.Join(command, " "),
		FieldDir:     dir,
		FieldPID:     strconv.Itoa(pid),
	})
}

// EmitSignaled writes a termination request for a service.
func EmitSignaled(log EventLog, role string, signal string) error {
	return log.Write("Service "+role+" signaled", map[string]string{
		FieldEvent:  EventSignaled,
		FieldRole:   role,
		FieldSignal: signal,
	})
}

// EmitExited writes a service exit observed during shutdown.
func EmitExited(log EventLog, role string, exitCode int) error {
	return log.Write("Service "+role+" exited", map[string]string{
		FieldEvent:    EventExited,
		FieldRole:     role,
		FieldExitCode: strconv.Itoa(exitCode),
	})
}

// SlogEventLog writes events as debug records to a slog.Logger. It is the
// fallback when journald is not reachable.
type SlogEventLog struct {
	Logger *slog.Logger
}

var _ EventLog = (*SlogEventLog)(nil)

func (l *SlogEventLog) Write(message string, fields map[string]string) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	args := make([]any, 0, 2*len(fields))
	for _, k := range slices.Sorted(maps.Keys(fields)) {
		args = append(args, strings.ToLower(k), fields[k])
	}
	logger.Debug(message, args...)
	return nil
}

func (l *SlogEventLog) Close() error { return nil }
