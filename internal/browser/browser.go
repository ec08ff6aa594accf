// Package browser opens URLs in the user's default browser.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/godbus/dbus/v5"

	"github.com/videoforge/devup/internal/executor"
)

// XDG desktop portal coordinates for OpenURI.
const (
	portalDest   = "org.freedesktop.portal.Desktop"
	portalPath   = dbus.ObjectPath("/org/freedesktop/portal/desktop")
	portalMethod = "org.freedesktop.portal.OpenURI.OpenURI"
)

// Opener opens URLs, preferring the desktop portal on the session bus and
// falling back to the platform's opener command.
type Opener struct {
	exec   executor.Executor
	portal func(ctx context.Context, url string) error
	goos   string
}

// New returns an Opener that starts fallback commands through exec.
func New(exec executor.Executor) *Opener {
	return &Opener{
		exec:   exec,
		portal: openViaPortal,
		goos:   runtime.GOOS,
	}
}

// Open opens url. It returns an error only if every mechanism failed.
func (o *Opener) Open(ctx context.Context, url string) error {
	var errs []error
	if o.portal != nil {
		err := o.portal(ctx, url)
		if err == nil {
			return nil
		}
		slog.Debug("desktop portal unavailable", "error", err)
		errs = append(errs, fmt.Errorf("portal: %w", err))
	}

	// Start puts the opener in its own process group, out of reach of the
	// terminal's interrupt. Some openers keep the browser in the
	// foreground, so a successful spawn counts as opened.
	argv := Command(o.goos, url)
	proc, err := o.exec.Start(executor.Command{Argv: argv})
	if err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", argv[0], err))
		return errors.Join(errs...)
	}
	go func() {
		code, err := proc.Wait()
		slog.Debug("browser opener exited", "command", argv[0], "pid", proc.Pid(), "code", code, "error", err)
	}()
	return nil
}

// Command returns the opener command line for goos.
func Command(goos, url string) []string {
	switch goos {
	case "darwin":
		return []string{"open", url}
	default:
		return []string{"xdg-open", url}
	}
}

func openViaPortal(ctx context.Context, url string) error {
	conn, err := dbus.ConnectSessionBus(dbus.WithContext(ctx))
	if err != nil {
		return err
	}
	defer conn.Close()

	var handle dbus.ObjectPath
	return conn.Object(portalDest, portalPath).
		CallWithContext(ctx, portalMethod, 0, "", url, map[string]dbus.Variant{}).
		Store(&handle)
}
