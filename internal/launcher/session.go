package launcher

import (
	"slices"

	"github.com/videoforge/devup/internal/executor"
	"github.com/videoforge/devup/internal/ui"
)

// Role identifies one of the three background services.
type Role string

const (
	RoleBackend  Role = "backend"
	RoleWorker   Role = "worker"
	RoleFrontend Role = "frontend"
)

// Roles is the fixed launch and termination order.
var Roles = []Role{RoleBackend, RoleWorker, RoleFrontend}

// Handle tracks one background service for the lifetime of a session.
type Handle struct {
	Role    Role
	Command []string
	Dir     string

	proc   executor.Process
	output *ui.LineWriter
}

// Pid returns the service's process ID.
func (h *Handle) Pid() int {
	return h.proc.Pid()
}

// Live reports whether the process has not exited yet.
func (h *Handle) Live() bool {
	select {
	case <-h.proc.Done():
		return false
	default:
		return true
	}
}

// ExitCode returns the exit code once the process has terminated.
func (h *Handle) ExitCode() (int, bool) {
	if h.Live() {
		return 0, false
	}
	code, _ := h.proc.Wait()
	return code, true
}

// Session owns the handles started during one launcher run.
type Session struct {
	handles []*Handle
}

func newSession() *Session {
	return &Session{}
}

func (s *Session) add(h *Handle) {
	s.handles = append(s.handles, h)
}

// Handles returns the tracked handles in launch order.
func (s *Session) Handles() []*Handle {
	return slices.Clone(s.handles)
}

// Get returns the handle for role, or nil if that service did not start.
func (s *Session) Get(role Role) *Handle {
	for _, h := range s.handles {
		if h.Role == role {
			return h
		}
	}
	return nil
}
