// Package session implements the SessionCoordinator: the component that
// drives one SSH connection's menu/instance/template dispatch, binds an
// interactive shell to a pod, and tears its resources down on exit.
//
// It is grounded on WhistlerSession in
// original_source/whistler/server.py, restructured around Go's
// goroutine-and-channel concurrency instead of asyncio tasks: one
// goroutine services the SSH connection's out-of-band requests
// (pty-req, window-change, auth-agent-req) for the lifetime of the
// session, while the main goroutine runs the target-specific flow
// (menu/instance/template) and finally binds the shell.
package session

import (
	"sync"

	"github.com/marma/whistler/internal/model"
)

// Session is the mutable, in-memory state of one SSH connection, per
// spec.md §3. It is owned by the Gateway for its lifetime and read by
// the forward-channel handler to authorize direct-tcpip requests.
type Session struct {
	Owner  model.Owner
	Target model.Target

	TermType         string
	InitialWidth     uint16
	InitialHeight    uint16
	AgentRequested   bool
	AgentPath        string // gateway-side agent socket path; never set, agent traffic rides an auth-agent@openssh.com channel (agentbridge.go)
	PodSocketPath    string // mirrored socket path inside the pod
	IsEphemeral      bool

	mu                 sync.RWMutex
	activeInstanceName model.ShortName
	hasActiveInstance  bool
}

// New builds a Session for one connection. If target is already
// instance-mode, activeInstanceName is pre-seeded so forward requests
// can be authorized before the shell is bound, per spec.md §4.1.
func New(owner model.Owner, target model.Target) *Session {
	s := &Session{Owner: owner, Target: target}
	if target.Kind == model.TargetInstance {
		s.SetActiveInstance(target.Name)
	}
	return s
}

// SetActiveInstance records the instance this connection is bound to.
func (s *Session) SetActiveInstance(name model.ShortName) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeInstanceName = name
	s.hasActiveInstance = true
}

// ActiveInstance returns the instance this connection is authorized to
// forward into, if any.
func (s *Session) ActiveInstance() (model.ShortName, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeInstanceName, s.hasActiveInstance
}
