// Package ui prints the launcher's console messages and forwards service
// output with per-service prefixes, docker-compose style.
package ui

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

const bannerRule = "======================================="

// Prefix colors cycle per service (ANSI 256 palette indices).
var prefixColors = []lipgloss.Color{"5", "2", "3", "6", "4", "1"}

// Printer serializes all console output so service lines never interleave
// mid-line with launcher messages.
type Printer struct {
	mu       sync.Mutex
	out      io.Writer
	color    bool
	renderer *lipgloss.Renderer

	banner  lipgloss.Style
	warn    lipgloss.Style
	errorSt lipgloss.Style
	success lipgloss.Style
}

// New returns a Printer writing to out. Styling is enabled only when out is
// a terminal and NO_COLOR is unset.
func New(out io.Writer) *Printer {
	return newPrinter(out, isTerminal(out) && os.Getenv("NO_COLOR") == "")
}

func newPrinter(out io.Writer, color bool) *Printer {
	r := lipgloss.NewRenderer(out)
	return &Printer{
		out:      out,
		color:    color,
		renderer: r,
		banner:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("6")),
		warn:     r.NewStyle().Foreground(lipgloss.Color("3")),
		errorSt:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("1")),
		success:  r.NewStyle().Foreground(lipgloss.Color("2")),
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (p *Printer) render(st lipgloss.Style, s string) string {
	if !p.color {
		return s
	}
	return st.Render(s)
}

func (p *Printer) println(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, s)
}

// Banner prints lines framed by rules.
func (p *Printer) Banner(lines ...string) {
	var b strings.Builder
	b.WriteString(p.render(p.banner, bannerRule))
	for _, l := range lines {
		b.WriteString("\n")
		b.WriteString(p.render(p.banner, "   "+l))
	}
	b.WriteString("\n")
	b.WriteString(p.render(p.banner, bannerRule))
	p.println(b.String())
}

// Section prints a blank line followed by an icon-led heading.
func (p *Printer) Section(icon, format string, args ...any) {
	p.println("\n" + icon + " " + fmt.Sprintf(format, args...))
}

// Info prints an icon-led line.
func (p *Printer) Info(icon, format string, args ...any) {
	p.println(icon + " " + fmt.Sprintf(format, args...))
}

// Success prints a confirmation line.
func (p *Printer) Success(format string, args ...any) {
	p.println(p.render(p.success, "✅ "+fmt.Sprintf(format, args...)))
}

// Warn prints a non-fatal problem.
func (p *Printer) Warn(format string, args ...any) {
	p.println(p.render(p.warn, "⚠️  "+fmt.Sprintf(format, args...)))
}

// Error prints a fatal problem.
func (p *Printer) Error(format string, args ...any) {
	p.println(p.render(p.errorSt, "❌ "+fmt.Sprintf(format, args...)))
}

// MaxLineLength is the longest partial line a LineWriter holds before
// emitting it.
const MaxLineLength = 4096

// Prefixed returns a writer that emits each complete line as
// "<name> | <line>". index picks the prefix color; width pads the name.
func (p *Printer) Prefixed(name string, index, width int) *LineWriter {
	label := fmt.Sprintf("%-*s", width, name)
	if p.color {
		st := p.renderer.NewStyle().Foreground(prefixColors[index%len(prefixColors)])
		label = st.Render(label)
	}
	return &LineWriter{printer: p, prefix: label + " | "}
}

// LineWriter buffers partial writes and forwards whole lines to its Printer.
type LineWriter struct {
	printer *Printer
	prefix  string

	mu  sync.Mutex
	buf []byte
}

func (w *LineWriter) Write(b []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf = append(w.buf, b...)
	for {
		i := lineEnd(w.buf)
		if i < 0 {
			break
		}
		if i > 0 || w.buf[i] == '\n' {
			w.emit(w.buf[:i])
		}
		w.buf = w.buf[i+1:]
	}
	if len(w.buf) >= MaxLineLength {
		w.emit(w.buf)
		w.buf = nil
	}
	return len(b), nil
}

// lineEnd returns the index of the first line terminator in b: a '\n', or
// a '\r' not followed by '\n'. A trailing '\r' waits for the next byte.
func lineEnd(b []byte) int {
	for i, c := range b {
		switch {
		case c == '\n':
			return i
		case c == '\r' && i+1 < len(b) && b[i+1] != '\n':
			return i
		}
	}
	return -1
}

// Flush emits any buffered partial line.
func (w *LineWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.buf) > 0 {
		w.emit(w.buf)
		w.buf = nil
	}
}

func (w *LineWriter) emit(line []byte) {
	// PTY output ends lines with \r\n.
	line = bytes.TrimSuffix(line, []byte("\r"))
	w.printer.println(w.prefix + string(line))
}
