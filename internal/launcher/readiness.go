package launcher

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"time"
)

const (
	// ReadyTimeout bounds the optional readiness poll.
	ReadyTimeout = 30 * time.Second
	// ReadyInterval is the pause between readiness attempts.
	ReadyInterval = 500 * time.Millisecond
)

// waitReady polls the browser URL's TCP address until it accepts a
// connection or ReadyTimeout passes. A timeout is only a warning.
func (l *Launcher) waitReady(ctx context.Context) {
	p := l.opts.Printer
	addr, err := dialAddress(l.cfg.Browser.URL)
	if err != nil {
		p.Warn("Cannot probe readiness: %v", err)
		return
	}

	p.Info("🔌", "Waiting for %s to accept connections...", addr)
	ctx, cancel := context.WithTimeout(ctx, l.readyTimeout)
	defer cancel()

	if err := pollTCP(ctx, addr, l.readyInterval); err != nil {
		p.Warn("%s not ready after %s, continuing anyway", addr, l.readyTimeout)
		slog.Debug("readiness probe gave up", "addr", addr, "error", err)
		return
	}
	p.Success("%s is accepting connections", addr)
}

// pollTCP dials addr until it succeeds or ctx ends.
func pollTCP(ctx context.Context, addr string, interval time.Duration) error {
	var d net.Dialer
	for attempt := 1; ; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, time.Second)
		conn, err := d.DialContext(attemptCtx, "tcp", addr)
		cancel()
		if err == nil {
			conn.Close()
			return nil
		}
		slog.Debug("readiness attempt failed", "addr", addr, "attempt", attempt, "error", err)

		t := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			t.Stop()
			return fmt.Errorf("%s: %w", addr, err)
		case <-t.C:
		}
	}
}

// dialAddress derives host:port from an http(s) URL.
func dialAddress(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("url %q has no host", raw)
	}
	port := u.Port()
	if port == "" {
		switch u.Scheme {
		case "https":
			port = "443"
		case "http":
			port = "80"
		default:
			return "", fmt.Errorf("url %q has no port", raw)
		}
	}
	return net.JoinHostPort(u.Hostname(), port), nil
}
