package shell

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"dockhand"
)

// Registry tracks admitted sessions and runs the liveness monitor. It is
// an explicit object owned by the daemon: components that need it are
// handed a reference, there is no package-level session state.
type Registry struct {
	interval time.Duration

	mu       sync.Mutex
	sessions map[*Session]struct{}
}

// NewRegistry creates a registry sweeping at the given heartbeat
// interval. A connection that misses one full interval of pings is
// terminated on the next sweep.
func NewRegistry(interval time.Duration) *Registry {
	return &Registry{
		interval: interval,
		sessions: make(map[*Session]struct{}),
	}
}

// Admit creates a session for an authenticated connection and starts
// tracking it for liveness.
func (r *Registry) Admit(conn Conn, principal dockhand.Principal) *Session {
	s := newSession(conn, principal)
	r.mu.Lock()
	r.sessions[s] = struct{}{}
	total := len(r.sessions)
	r.mu.Unlock()
	s.log.Debug("session admitted", "total", total)
	return s
}

// Release stops tracking the session. Idempotent; does not close the
// session itself; teardown is the bridge's responsibility.
func (r *Registry) Release(s *Session) {
	r.mu.Lock()
	delete(r.sessions, s)
	total := len(r.sessions)
	r.mu.Unlock()
	s.log.Debug("session released", "total", total)
}

// Len returns the number of currently admitted sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Run drives the heartbeat until ctx is cancelled. Each tick: sessions
// that never answered the previous ping are hard-terminated and removed;
// survivors get their flag reset and a fresh ping. Unresponsive peers
// are therefore disconnected within one interval of their missed pong.
func (r *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep()
		}
	}
}

func (r *Registry) sweep() {
	r.mu.Lock()
	snapshot := make([]*Session, 0, len(r.sessions))
	for s := range r.sessions {
		snapshot = append(snapshot, s)
	}
	r.mu.Unlock()

	for _, s := range snapshot {
		if !s.alive.Load() {
			slog.Info("terminating unresponsive session", "session", s.ID)
			s.Terminate()
			r.Release(s)
			continue
		}
		s.alive.Store(false)
		deadline := time.Now().Add(writeWait)
		if err := s.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
			s.log.Debug("ping failed", "err", err)
		}
	}
}
