// devup - start the Video Forge development environment
//
// Usage:
//
//	devup [flags]
//
// devup checks for Node.js, installs missing dependencies, prepares the
// database schema, then starts the backend, worker and frontend in the
// background and opens the app in a browser. Ctrl+C stops everything.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/creack/pty"
	flag "github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/videoforge/devup/internal/browser"
	"github.com/videoforge/devup/internal/config"
	"github.com/videoforge/devup/internal/dirs"
	"github.com/videoforge/devup/internal/eventlog"
	"github.com/videoforge/devup/internal/executor"
	"github.com/videoforge/devup/internal/launcher"
	"github.com/videoforge/devup/internal/platform/systemd"
)

// Global flags
var (
	rootFlag      string
	configFlag    string
	noBrowserFlag bool
	ttyFlag       bool
	waitReadyFlag bool
	debugFlag     bool
)

func main() {
	flag.StringVarP(&rootFlag, "root", "C", ".", "Workspace directory containing the sub-projects")
	flag.StringVarP(&configFlag, "config", "c", "", "Config file (default: <root>/"+dirs.ConfigFileName+", then the user config dir)")
	flag.BoolVar(&noBrowserFlag, "no-browser", false, "Do not open a browser once services are up")
	flag.BoolVar(&ttyFlag, "tty", false, "Run services on pseudo-terminals")
	flag.BoolVar(&waitReadyFlag, "wait-ready", false, "Wait for the browser URL to accept connections before opening it")
	flag.BoolVar(&debugFlag, "debug", os.Getenv("DEVUP_DEBUG") != "", "Verbose diagnostics (also DEVUP_DEBUG)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `devup - start the Video Forge development environment

Usage:
  devup [flags]

Press Ctrl+C to stop all services.

Flags:
`)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() > 0 {
		fatal("unexpected argument %q", flag.Arg(0))
	}

	cfg, path := loadConfig()

	level := cfg.LogLevel
	if debugFlag {
		level = "debug"
	}
	logger, err := newLogger(os.Stderr, level)
	if err != nil {
		fatal("%v", err)
	}
	slog.SetDefault(logger)
	if path != "" {
		slog.Debug("loaded config", "path", path)
	}

	os.Exit(launch(cfg))
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

// loadConfig resolves and loads the config, applying flag overrides.
func loadConfig() (*config.Config, string) {
	path := configFlag
	if path == "" {
		path = dirs.FindConfigFile(rootFlag)
	}
	cfg, err := config.Load(path)
	if err != nil {
		fatal("%v", err)
	}
	if noBrowserFlag {
		cfg.Browser.Enabled = false
	}
	return cfg, path
}

// launch runs one session and returns the process exit status.
func launch(cfg *config.Config) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	events := openEventLog()
	defer events.Close()

	exec := executor.Default()
	l := launcher.New(launcher.Options{
		Root:      rootFlag,
		Config:    cfg,
		Executor:  exec,
		Browser:   browser.New(exec),
		Events:    events,
		Notifier:  systemd.NewNotifier(),
		Output:    os.Stdout,
		TTY:       ttyFlag,
		TTYSize:   terminalSize(os.Stdout),
		WaitReady: waitReadyFlag,
	})

	err := l.Run(ctx)
	if err == nil {
		return 0
	}
	// The launcher has already told the user what went wrong.
	var exitErr *launcher.ExitError
	if errors.As(err, &exitErr) {
		slog.Debug("launcher failed", "state", l.State(), "error", err)
		return exitErr.Code
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	return 1
}

// newLogger returns a slog.Logger backed by a charmbracelet/log handler.
func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log_level %q: %w", level, err)
	}
	handler := log.NewWithOptions(w, log.Options{
		Level:           lvl,
		Prefix:          "devup",
		ReportTimestamp: lvl <= log.DebugLevel,
	})
	return slog.New(handler), nil
}

// openEventLog sends lifecycle events to the debug log, and to journald
// when it is reachable.
func openEventLog() eventlog.EventLog {
	debug := &eventlog.SlogEventLog{}
	j, err := systemd.OpenJournal()
	if err != nil {
		slog.Debug("journald unavailable", "error", err)
		return debug
	}
	return eventlog.NewCombinedEventLog(j, debug)
}

// terminalSize returns f's window size, or nil when f is not a terminal.
func terminalSize(f *os.File) *pty.Winsize {
	cols, rows, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return nil
	}
	return &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)}
}
