package executor

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"sync"
	"syscall"

	"github.com/creack/pty"
)

// FakeCommand is a function that simulates a command execution.
// It receives the command arguments, stdin, stdout, stderr and should return an exit code.
// The context is cancelled when the process should stop.
type FakeCommand func(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, args []string) int

// FakeOptions tweak how a registered fake command reacts to signals.
type FakeOptions struct {
	// IgnoreTerm makes the process survive SIGTERM; only SIGKILL stops it.
	IgnoreTerm bool
}

// Invocation kinds recorded by FakeExecutor.
const (
	InvocationRun    = "run"
	InvocationStart  = "start"
	InvocationSignal = "signal"
)

// Invocation records one call made through a FakeExecutor.
type Invocation struct {
	Kind   string
	Argv   []string
	Dir    string
	PTY    bool
	Signal syscall.Signal
}

// FakeExecutor is a test implementation of Executor that runs registered fake commands.
type FakeExecutor struct {
	mu       sync.RWMutex
	commands map[string]fakeEntry
	calls    []Invocation
}

type fakeEntry struct {
	handler FakeCommand
	opts    FakeOptions
}

var _ Executor = (*FakeExecutor)(nil)

// NewFakeExecutor creates a new FakeExecutor.
func NewFakeExecutor() *FakeExecutor {
	return &FakeExecutor{
		commands: make(map[string]fakeEntry),
	}
}

// RegisterCommand registers a fake command implementation.
// The name should match the first element of the command slice.
func (e *FakeExecutor) RegisterCommand(name string, handler FakeCommand) {
	e.RegisterCommandOpts(name, handler, FakeOptions{})
}

// RegisterCommandOpts registers a fake command with signal options.
func (e *FakeExecutor) RegisterCommandOpts(name string, handler FakeCommand, opts FakeOptions) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.commands[name] = fakeEntry{handler: handler, opts: opts}
}

// Calls returns every invocation recorded so far, in order.
func (e *FakeExecutor) Calls() []Invocation {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Clone(e.calls)
}

// CallsOf returns the recorded invocations of the given kind.
func (e *FakeExecutor) CallsOf(kind string) []Invocation {
	var out []Invocation
	for _, c := range e.Calls() {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

func (e *FakeExecutor) record(inv Invocation) {
	e.mu.Lock()
	e.calls = append(e.calls, inv)
	e.mu.Unlock()
}

func (e *FakeExecutor) lookup(argv []string) (fakeEntry, error) {
	if len(argv) == 0 {
		return fakeEntry{}, fmt.Errorf("empty command")
	}
	e.mu.RLock()
	entry, ok := e.commands[argv[0]]
	e.mu.RUnlock()
	if !ok {
		return fakeEntry{}, fmt.Errorf("%w: %s", ErrNotFound, argv[0])
	}
	return entry, nil
}

// Run implements Executor.Run for FakeExecutor.
func (e *FakeExecutor) Run(ctx context.Context, c Command) (int, error) {
	e.record(Invocation{Kind: InvocationRun, Argv: c.Argv, Dir: c.Dir})
	entry, err := e.lookup(c.Argv)
	if err != nil {
		return -1, err
	}
	return entry.handler(ctx, orEmpty(c.Stdin), orDiscard(c.Stdout), orDiscard(c.Stderr), c.Argv), nil
}

// Start implements Executor.Start for FakeExecutor.
func (e *FakeExecutor) Start(c Command) (Process, error) {
	return e.start(c, false)
}

// StartPTY implements Executor.StartPTY for FakeExecutor. Both output
// streams go to cmd.Stdout, as they would through a terminal.
func (e *FakeExecutor) StartPTY(c Command, size *pty.Winsize) (Process, error) {
	c.Stderr = c.Stdout
	return e.start(c, true)
}

func (e *FakeExecutor) start(c Command, tty bool) (Process, error) {
	e.record(Invocation{Kind: InvocationStart, Argv: c.Argv, Dir: c.Dir, PTY: tty})
	entry, err := e.lookup(c.Argv)
	if err != nil {
		return nil, err
	}

	termCtx, term := context.WithCancel(context.Background())
	p := &fakeProcess{
		exec: e,
		argv: c.Argv,
		dir:  c.Dir,
		opts: entry.opts,
		term: term,
		done: make(chan struct{}),
	}

	go func() {
		code := entry.handler(termCtx, orEmpty(c.Stdin), orDiscard(c.Stdout), orDiscard(c.Stderr), c.Argv)
		p.mu.Lock()
		p.exitCode = code
		p.mu.Unlock()
		close(p.done)
	}()

	return p, nil
}

// fakeProcess implements Process for FakeExecutor.
type fakeProcess struct {
	exec *FakeExecutor
	argv []string
	dir  string
	opts FakeOptions
	term context.CancelFunc
	done chan struct{}

	mu       sync.Mutex
	exitCode int
}

func (p *fakeProcess) Pid() int { return 4242 }

func (p *fakeProcess) Signal(sig syscall.Signal) error {
	p.exec.record(Invocation{Kind: InvocationSignal, Argv: p.argv, Dir: p.dir, Signal: sig})
	select {
	case <-p.done:
		return os.ErrProcessDone
	default:
	}
	switch {
	case sig == syscall.SIGKILL:
		p.term()
	case sig == syscall.SIGTERM && !p.opts.IgnoreTerm:
		p.term()
	}
	return nil
}

func (p *fakeProcess) Kill() error {
	return p.Signal(syscall.SIGKILL)
}

func (p *fakeProcess) Wait() (int, error) {
	<-p.done
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode, nil
}

func (p *fakeProcess) Done() <-chan struct{} {
	return p.done
}

// Exit returns a FakeCommand that exits immediately with code.
func Exit(code int) FakeCommand {
	return func(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, args []string) int {
		return code
	}
}

// Serve returns a FakeCommand that runs until it is stopped, like a server.
// When stopped it exits with 143, the status of a SIGTERM'd process.
func Serve() FakeCommand {
	return func(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, args []string) int {
		<-ctx.Done()
		return 143
	}
}

func orDiscard(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}

func orEmpty(r io.Reader) io.Reader {
	if r == nil {
		return eofReader{}
	}
	return r
}

type eofReader struct{}

func (eofReader) Read([]byte) (int, error) { return 0, io.EOF }
