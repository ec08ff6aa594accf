// Package launcher drives the development environment lifecycle: runtime
// check, dependency install, schema setup, background services, browser,
// and teardown on interrupt.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/creack/pty"

	"github.com/videoforge/devup/internal/config"
	"github.com/videoforge/devup/internal/eventlog"
	"github.com/videoforge/devup/internal/executor"
	"github.com/videoforge/devup/internal/ui"
)

const (
	// StabilizationDelay is how long services get to start listening
	// before the browser is opened.
	StabilizationDelay = 5 * time.Second

	// BrowserTimeout bounds the browser open step.
	BrowserTimeout = 10 * time.Second

	// KillTimeout bounds the wait after SIGKILL escalation.
	KillTimeout = 2 * time.Second

	// ExitInterrupted is returned when an interrupt arrives before services start.
	ExitInterrupted = 130

	// DefaultTitle heads the startup banner.
	DefaultTitle = "🎬 VIDEO FORGE LAUNCHER"
)

// BrowserOpener opens a URL in the user's browser.
type BrowserOpener interface {
	Open(ctx context.Context, url string) error
}

// Notifier receives readiness notifications for a supervising service manager.
type Notifier interface {
	Ready()
	Stopping()
	Status(text string)
}

// Options configures a Launcher.
type Options struct {
	// Root is the workspace directory containing the sub-projects.
	Root   string
	Config *config.Config

	Executor executor.Executor
	Browser  BrowserOpener
	Events   eventlog.EventLog
	Notifier Notifier
	Printer  *ui.Printer

	// Output receives raw output of the synchronous install and schema commands.
	Output io.Writer

	Title string

	// TTY starts services on pseudo-terminals of TTYSize.
	TTY     bool
	TTYSize *pty.Winsize

	// WaitReady polls the browser URL's address before opening it.
	WaitReady bool
}

// Launcher runs one development session.
type Launcher struct {
	opts  Options
	cfg   *config.Config
	state State

	stabilizationDelay time.Duration
	readyTimeout       time.Duration
	readyInterval      time.Duration
}

// New creates a Launcher, filling unset options with defaults.
func New(opts Options) *Launcher {
	if opts.Executor == nil {
		opts.Executor = executor.Default()
	}
	if opts.Events == nil {
		opts.Events = &eventlog.SlogEventLog{}
	}
	if opts.Notifier == nil {
		opts.Notifier = nopNotifier{}
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Printer == nil {
		opts.Printer = ui.New(opts.Output)
	}
	if opts.Title == "" {
		opts.Title = DefaultTitle
	}
	if opts.Root == "" {
		opts.Root = "."
	}
	return &Launcher{
		opts:               opts,
		cfg:                opts.Config,
		stabilizationDelay: StabilizationDelay,
		readyTimeout:       ReadyTimeout,
		readyInterval:      ReadyInterval,
	}
}

// State returns the current lifecycle state.
func (l *Launcher) State() State {
	return l.state
}

func (l *Launcher) transition(s State) {
	slog.Debug("launcher state", "from", l.state, "to", s)
	l.state = s
	if err := eventlog.EmitState(l.opts.Events, s.String()); err != nil {
		slog.Debug("event log write failed", "error", err)
	}
}

// Run executes the full lifecycle and blocks until ctx is cancelled by an
// interrupt. It returns nil after a graceful shutdown and an *ExitError on
// a fatal setup failure.
func (l *Launcher) Run(ctx context.Context) error {
	p := l.opts.Printer
	p.Banner(l.opts.Title)

	l.transition(StateCheckingDeps)
	if err := l.checkDependencies(ctx); err != nil {
		l.transition(StateFailed)
		return err
	}

	l.transition(StateInstallingDeps)
	if err := l.installDependencies(ctx); err != nil {
		l.transition(StateFailed)
		return err
	}

	l.transition(StateSettingUpDb)
	l.setupDatabase(ctx)

	if ctx.Err() != nil {
		l.transition(StateFailed)
		p.Warn("Interrupted before services started.")
		return &ExitError{Code: ExitInterrupted, Err: context.Cause(ctx)}
	}

	l.transition(StateStartingServices)
	session := l.startServices()

	l.transition(StateStabilizing)
	if l.stabilize(ctx) {
		if l.opts.WaitReady {
			l.waitReady(ctx)
		}
		l.openBrowser(ctx)

		l.transition(StateIdle)
		l.idle(ctx)
	}

	l.shutdown(session)
	return nil
}

func (l *Launcher) checkDependencies(ctx context.Context) error {
	p := l.opts.Printer
	rt := l.cfg.Runtime
	p.Info("🔍", "Checking dependencies...")

	code, err := l.opts.Executor.Run(ctx, executor.Command{Argv: rt.Probe})
	if err == nil && code == 0 {
		p.Success("%s found", rt.Name)
		return nil
	}
	if ctx.Err() != nil {
		p.Warn("Interrupted while checking for %s.", rt.Name)
		return &ExitError{Code: ExitInterrupted, Err: context.Cause(ctx)}
	}

	p.Error("%s not found. Please install %s.", rt.Name, rt.Name)
	if err == nil {
		err = fmt.Errorf("%s exited with status %d", strings.Join(rt.Probe, " "), code)
	}
	return &ExitError{Code: 1, Err: fmt.Errorf("dependency check: %w", err)}
}

func (l *Launcher) installDependencies(ctx context.Context) error {
	p := l.opts.Printer
	inst := l.cfg.Install
	p.Section("📦", "Installing Dependencies...")

	for _, project := range inst.Projects {
		dir := filepath.Join(l.opts.Root, project)
		if isDir(filepath.Join(dir, inst.Marker)) {
			slog.Debug("dependencies present, skipping install", "project", project, "marker", inst.Marker)
			continue
		}

		code, err := l.runSync(ctx, inst.Command, dir)
		if err == nil && code == 0 {
			continue
		}
		if ctx.Err() != nil {
			p.Warn("Interrupted while installing %s dependencies.", project)
			return &ExitError{Code: ExitInterrupted, Err: context.Cause(ctx)}
		}
		p.Error("Error running command: %s (in %s)", strings.Join(inst.Command, " "), project)
		if err != nil {
			return &ExitError{Code: 1, Err: fmt.Errorf("install %s: %w", project, err)}
		}
		return &ExitError{Code: code, Err: fmt.Errorf("install %s: exited with status %d", project, code)}
	}
	return nil
}

func (l *Launcher) setupDatabase(ctx context.Context) {
	p := l.opts.Printer
	db := l.cfg.Database
	p.Section("🐘", "Setting up database schema...")

	code, err := l.runSync(ctx, db.Command, filepath.Join(l.opts.Root, db.Dir))
	switch {
	case err != nil:
		slog.Debug("schema setup failed to start", "error", err)
		p.Warn("Schema setup failed: %v", err)
	case code != 0:
		p.Warn("Schema setup failed (exit status %d).", code)
	}
}

func (l *Launcher) runSync(ctx context.Context, argv []string, dir string) (int, error) {
	l.opts.Printer.Info("🚀", "Running: %s", strings.Join(argv, " "))
	return l.opts.Executor.Run(ctx, executor.Command{
		Argv:   argv,
		Dir:    dir,
		Stdout: l.opts.Output,
		Stderr: l.opts.Output,
	})
}

func (l *Launcher) serviceConfig(role Role) config.ServiceConfig {
	switch role {
	case RoleBackend:
		return l.cfg.Services.Backend
	case RoleWorker:
		return l.cfg.Services.Worker
	default:
		return l.cfg.Services.Frontend
	}
}

func (l *Launcher) startServices() *Session {
	p := l.opts.Printer
	p.Section("🚀", "Starting Services...")

	width := 0
	for _, role := range Roles {
		width = max(width, len(role))
	}

	session := newSession()
	for i, role := range Roles {
		svc := l.serviceConfig(role)
		out := p.Prefixed(string(role), i, width)
		cmd := executor.Command{
			Argv:   svc.Command,
			Dir:    filepath.Join(l.opts.Root, svc.Dir),
			Stdout: out,
			Stderr: out,
		}

		var proc executor.Process
		var err error
		if l.opts.TTY {
			proc, err = l.opts.Executor.StartPTY(cmd, l.opts.TTYSize)
		} else {
			proc, err = l.opts.Executor.Start(cmd)
		}
		if err != nil {
			p.Warn("Failed to start %s: %v", role, err)
			continue
		}

		h := &Handle{Role: role, Command: svc.Command, Dir: cmd.Dir, proc: proc, output: out}
		session.add(h)
		if err := eventlog.EmitStarted(l.opts.Events, string(role), svc.Command, cmd.Dir, h.Pid()); err != nil {
			slog.Debug("event log write failed", "error", err)
		}
		p.Success("%s starting (pid %d)...", titleCase(string(role)), h.Pid())
	}
	return session
}

// stabilize waits the fixed delay. It returns false if interrupted.
func (l *Launcher) stabilize(ctx context.Context) bool {
	l.opts.Printer.Section("⏳", "Waiting for services to stabilize (%s)...", l.stabilizationDelay)
	t := time.NewTimer(l.stabilizationDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (l *Launcher) openBrowser(ctx context.Context) {
	p := l.opts.Printer
	b := l.cfg.Browser
	if !b.Enabled || b.URL == "" || l.opts.Browser == nil {
		slog.Debug("browser open skipped")
		return
	}
	p.Section("🌐", "Opening Browser...")

	ctx, cancel := context.WithTimeout(ctx, BrowserTimeout)
	defer cancel()
	if err := l.opts.Browser.Open(ctx, b.URL); err != nil {
		p.Warn("Could not open a browser (%v); visit %s", err, b.URL)
	}
}

func (l *Launcher) idle(ctx context.Context) {
	p := l.opts.Printer
	p.Banner("✅ SYSTEM RUNNING!", "Press Ctrl+C to stop all services")
	l.opts.Notifier.Status("running")
	l.opts.Notifier.Ready()
	<-ctx.Done()
}

func (l *Launcher) shutdown(session *Session) {
	p := l.opts.Printer
	l.transition(StateShuttingDown)
	l.opts.Notifier.Stopping()
	p.Section("🛑", "Stopping services...")

	handles := session.Handles()
	for _, h := range handles {
		l.signal(h, syscall.SIGTERM)
	}

	if !waitAll(handles, l.cfg.ShutdownTimeout) {
		for _, h := range handles {
			if h.Live() {
				p.Warn("%s did not exit after SIGTERM, sending SIGKILL", h.Role)
				l.signal(h, syscall.SIGKILL)
			}
		}
		waitAll(handles, KillTimeout)
	}

	for _, h := range handles {
		h.output.Flush()
		if code, ok := h.ExitCode(); ok {
			if err := eventlog.EmitExited(l.opts.Events, string(h.Role), code); err != nil {
				slog.Debug("event log write failed", "error", err)
			}
		} else {
			p.Warn("%s (pid %d) is still running", h.Role, h.Pid())
		}
	}

	p.Success("All services stopped. Goodbye!")
	l.transition(StateTerminated)
}

func (l *Launcher) signal(h *Handle, sig syscall.Signal) {
	err := h.proc.Signal(sig)
	if err != nil && !errors.Is(err, os.ErrProcessDone) {
		slog.Warn("signal failed", "role", h.Role, "signal", sig, "error", err)
	}
	if err := eventlog.EmitSignaled(l.opts.Events, string(h.Role), sig.String()); err != nil {
		slog.Debug("event log write failed", "error", err)
	}
}

// waitAll waits for every handle to exit within d and reports whether they did.
func waitAll(handles []*Handle, d time.Duration) bool {
	deadline := time.NewTimer(d)
	defer deadline.Stop()
	for _, h := range handles {
		select {
		case <-h.proc.Done():
		case <-deadline.C:
			return false
		}
	}
	return true
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

type nopNotifier struct{}

func (nopNotifier) Ready()        {}
func (nopNotifier) Stopping()     {}
func (nopNotifier) Status(string) {}
