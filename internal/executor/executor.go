// Package executor provides an abstraction for running and starting processes.
package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"
)

// ErrNotFound is returned when a command's executable cannot be located.
var ErrNotFound = errors.New("executable not found")

// Command describes a process to run.
type Command struct {
	Argv []string
	Dir  string

	// Env is appended to the parent environment.
	Env []string

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

func (c Command) String() string {
	return fmt.Sprint(c.Argv)
}

// Process represents a running background process.
type Process interface {
	Pid() int
	// Signal delivers sig to the process group, falling back to the process itself.
	Signal(sig syscall.Signal) error
	// Kill sends SIGKILL to the process group.
	Kill() error
	// Wait blocks until the process exits and returns the exit code.
	Wait() (exitCode int, err error)
	// Done is closed once the process has exited.
	Done() <-chan struct{}
}

// Executor runs processes.
type Executor interface {
	// Run runs a command to completion. A command that starts and exits
	// nonzero returns its exit code and a nil error.
	Run(ctx context.Context, cmd Command) (exitCode int, err error)

	// Start starts a command in its own process group without waiting.
	Start(cmd Command) (Process, error)

	// StartPTY starts a command attached to a new pseudo-terminal. Output
	// from the terminal is copied to cmd.Stdout.
	StartPTY(cmd Command, size *pty.Winsize) (Process, error)
}

// ExecExecutor is the default Executor that uses os/exec.
type ExecExecutor struct {
	// WaitDelay bounds how long Run waits for I/O after ctx is cancelled.
	WaitDelay time.Duration
}

// Default returns the default ExecExecutor.
func Default() Executor {
	return &ExecExecutor{WaitDelay: 5 * time.Second}
}

func (e *ExecExecutor) command(ctx context.Context, c Command) (*exec.Cmd, error) {
	if len(c.Argv) == 0 {
		return nil, fmt.Errorf("empty command")
	}
	cmd := exec.CommandContext(ctx, c.Argv[0], c.Argv[1:]...)
	if errors.Is(cmd.Err, exec.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, c.Argv[0])
	}
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	cmd.Stdin = c.Stdin
	cmd.Stdout = c.Stdout
	cmd.Stderr = c.Stderr
	return cmd, nil
}

// Run implements Executor.Run. Cancelling ctx sends SIGTERM to the child.
func (e *ExecExecutor) Run(ctx context.Context, c Command) (int, error) {
	cmd, err := e.command(ctx, c)
	if err != nil {
		return -1, err
	}
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = e.WaitDelay

	if err := cmd.Start(); err != nil {
		return -1, startError(c, err)
	}
	return exitCode(cmd.Wait())
}

// Start implements Executor.Start using os/exec.
func (e *ExecExecutor) Start(c Command) (Process, error) {
	cmd, err := e.command(context.Background(), c)
	if err != nil {
		return nil, err
	}
	// Own process group so the whole tree (npm -> node -> esbuild) can be signalled.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	// A grandchild that left the group may still hold the output pipe.
	cmd.WaitDelay = e.WaitDelay

	if err := cmd.Start(); err != nil {
		return nil, startError(c, err)
	}
	p := newExecProcess(cmd)
	go p.wait(nil)
	return p, nil
}

// StartPTY implements Executor.StartPTY using creack/pty. The child
// becomes a session leader with the PTY as its controlling terminal.
func (e *ExecExecutor) StartPTY(c Command, size *pty.Winsize) (Process, error) {
	cmd, err := e.command(context.Background(), c)
	if err != nil {
		return nil, err
	}
	cmd.Env = append(cmd.Environ(), "TERM=xterm-256color")
	out := c.Stdout
	cmd.Stdin, cmd.Stdout, cmd.Stderr = nil, nil, nil

	ptmx, err := pty.StartWithSize(cmd, size)
	if err != nil {
		return nil, startError(c, err)
	}

	copied := make(chan struct{})
	go func() {
		defer close(copied)
		if out == nil {
			out = io.Discard
		}
		// Reading the master returns EIO once the child side is gone.
		_, _ = io.Copy(out, ptmx)
	}()

	p := newExecProcess(cmd)
	go p.wait(func() {
		_ = ptmx.Close()
		<-copied
	})
	return p, nil
}

// execProcess wraps exec.Cmd to implement Process.
type execProcess struct {
	cmd  *exec.Cmd
	done chan struct{}

	mu       sync.Mutex
	exitCode int
	exitErr  error
}

func newExecProcess(cmd *exec.Cmd) *execProcess {
	return &execProcess{cmd: cmd, done: make(chan struct{})}
}

func (p *execProcess) wait(after func()) {
	code, err := exitCode(p.cmd.Wait())
	if after != nil {
		after()
	}
	p.mu.Lock()
	p.exitCode = code
	p.exitErr = err
	p.mu.Unlock()
	close(p.done)
}

func (p *execProcess) Pid() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

func (p *execProcess) Signal(sig syscall.Signal) error {
	select {
	case <-p.done:
		return os.ErrProcessDone
	default:
	}
	// Try process group first (negative PID), then fall back to direct process.
	if pid := p.Pid(); pid > 0 {
		if err := unix.Kill(-pid, sig); err == nil {
			return nil
		}
	}
	return p.cmd.Process.Signal(sig)
}

func (p *execProcess) Kill() error {
	return p.Signal(syscall.SIGKILL)
}

func (p *execProcess) Wait() (int, error) {
	<-p.done
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode, p.exitErr
}

func (p *execProcess) Done() <-chan struct{} {
	return p.done
}

func exitCode(err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	// The child exited 0 but something else kept its output open.
	if errors.Is(err, exec.ErrWaitDelay) {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			return 128 + int(status.Signal()), nil
		}
		return exitErr.ExitCode(), nil
	}
	return 1, err
}

func startError(c Command, err error) error {
	if errors.Is(err, exec.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, c.Argv[0])
	}
	return fmt.Errorf("start %s: %w", c.Argv[0], err)
}
