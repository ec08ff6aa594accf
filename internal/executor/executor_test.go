package executor

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestExecExecutor_RunExitCode(t *testing.T) {
	requireShell(t)
	e := Default()

	code, err := e.Run(context.Background(), Command{Argv: []string{"sh", "-c", "exit 3"}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if code != 3 {
		t.Fatalf("exit code = %d, want 3", code)
	}
}

func TestExecExecutor_RunWorkingDirAndOutput(t *testing.T) {
	requireShell(t)
	dir := t.TempDir()
	var out bytes.Buffer

	code, err := Default().Run(context.Background(), Command{
		Argv:   []string{"sh", "-c", "pwd; echo $DEVUP_TEST"},
		Dir:    dir,
		Env:    []string{"DEVUP_TEST=hello"},
		Stdout: &out,
	})
	if err != nil || code != 0 {
		t.Fatalf("Run: code=%d err=%v", code, err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("unexpected output %q", out.String())
	}
	gotDir, _ := filepath.EvalSymlinks(lines[0])
	wantDir, _ := filepath.EvalSymlinks(dir)
	if gotDir != wantDir {
		t.Errorf("working dir = %q, want %q", gotDir, wantDir)
	}
	if lines[1] != "hello" {
		t.Errorf("env not passed, got %q", lines[1])
	}
}

func TestExecExecutor_RunNotFound(t *testing.T) {
	_, err := Default().Run(context.Background(), Command{Argv: []string{"devup-definitely-missing-binary"}})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestExecExecutor_StartAndTerminate(t *testing.T) {
	requireShell(t)

	p, err := Default().Start(Command{Argv: []string{"sleep", "30"}})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if p.Pid() <= 0 {
		t.Fatalf("expected a pid, got %d", p.Pid())
	}

	if err := p.Signal(syscall.SIGTERM); err != nil {
		t.Fatalf("Signal: %v", err)
	}

	select {
	case <-p.Done():
	case <-time.After(5 * time.Second):
		_ = p.Kill()
		t.Fatal("process did not exit after SIGTERM")
	}

	code, _ := p.Wait()
	if code != 128+int(syscall.SIGTERM) {
		t.Errorf("exit code = %d, want %d", code, 128+int(syscall.SIGTERM))
	}

	if err := p.Signal(syscall.SIGTERM); !errors.Is(err, os.ErrProcessDone) {
		t.Errorf("signal after exit: got %v, want ErrProcessDone", err)
	}
}

func TestExecExecutor_StartDoneDespiteHeldPipe(t *testing.T) {
	requireShell(t)
	var out syncBuffer
	e := &ExecExecutor{WaitDelay: 100 * time.Millisecond}

	// The background sleep inherits stdout and outlives the shell.
	p, err := e.Start(Command{
		Argv:   []string{"sh", "-c", "sleep 30 & echo started"},
		Stdout: &out,
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	pgid := p.Pid()
	t.Cleanup(func() { _ = syscall.Kill(-pgid, syscall.SIGKILL) })

	select {
	case <-p.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("Done stayed open while a grandchild held the output pipe")
	}
	if code, err := p.Wait(); code != 0 || err != nil {
		t.Errorf("Wait = %d, %v; want 0, nil", code, err)
	}
	if !strings.Contains(out.String(), "started") {
		t.Errorf("output lost: %q", out.String())
	}
}

func TestExecExecutor_StartPTY(t *testing.T) {
	requireShell(t)
	var out syncBuffer

	p, err := Default().StartPTY(Command{
		Argv:   []string{"sh", "-c", "test -t 1 && echo tty"},
		Stdout: &out,
	}, nil)
	if err != nil {
		t.Skipf("pty unavailable: %v", err)
	}

	code, _ := p.Wait()
	if code != 0 {
		t.Fatalf("exit code = %d, output %q", code, out.String())
	}
	if !strings.Contains(out.String(), "tty") {
		t.Errorf("expected output from a terminal, got %q", out.String())
	}
}

func TestFakeExecutor_RecordsCalls(t *testing.T) {
	fe := NewFakeExecutor()
	fe.RegisterCommand("npm", Exit(0))
	fe.RegisterCommand("node", Serve())

	if code, err := fe.Run(context.Background(), Command{Argv: []string{"npm", "install"}, Dir: "backend"}); err != nil || code != 0 {
		t.Fatalf("Run: code=%d err=%v", code, err)
	}

	p, err := fe.Start(Command{Argv: []string{"node", "server.js"}, Dir: "backend"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := p.Signal(syscall.SIGTERM); err != nil {
		t.Fatalf("Signal: %v", err)
	}
	if code, _ := p.Wait(); code != 143 {
		t.Errorf("exit code = %d, want 143", code)
	}

	calls := fe.Calls()
	if len(calls) != 3 {
		t.Fatalf("expected 3 calls, got %+v", calls)
	}
	if calls[0].Kind != InvocationRun || calls[0].Dir != "backend" {
		t.Errorf("unexpected first call %+v", calls[0])
	}
	if calls[1].Kind != InvocationStart || calls[1].Argv[1] != "server.js" {
		t.Errorf("unexpected second call %+v", calls[1])
	}
	if calls[2].Kind != InvocationSignal || calls[2].Signal != syscall.SIGTERM {
		t.Errorf("unexpected third call %+v", calls[2])
	}
}

func TestFakeExecutor_IgnoreTerm(t *testing.T) {
	fe := NewFakeExecutor()
	fe.RegisterCommandOpts("stubborn", Serve(), FakeOptions{IgnoreTerm: true})

	p, err := fe.Start(Command{Argv: []string{"stubborn"}})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	_ = p.Signal(syscall.SIGTERM)

	select {
	case <-p.Done():
		t.Fatal("process exited on SIGTERM despite IgnoreTerm")
	case <-time.After(50 * time.Millisecond):
	}

	_ = p.Kill()
	select {
	case <-p.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("process did not exit on SIGKILL")
	}
}

func TestFakeExecutor_UnknownCommand(t *testing.T) {
	fe := NewFakeExecutor()
	if _, err := fe.Start(Command{Argv: []string{"ghost"}}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if len(fe.CallsOf(InvocationStart)) != 1 {
		t.Fatalf("failed start should still be recorded")
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
