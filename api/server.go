// Package api exposes the daemon's HTTP surface: a bearer-gated REST
// API over the record store and runtime, and the WebSocket endpoint the
// shell bridge runs on.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"dockhand"
	"dockhand/internal/auth"
	"dockhand/internal/runtime"
	"dockhand/internal/shell"
	"dockhand/internal/store"
)

// RecordStore is the read/delete surface the REST layer needs.
type RecordStore interface {
	List(ctx context.Context) ([]dockhand.ContainerRecord, error)
	Get(ctx context.Context, id string) (dockhand.ContainerRecord, error)
	Delete(ctx context.Context, id string) error
}

// Syncer triggers an on-demand reconciliation pass.
type Syncer interface {
	SyncNow(ctx context.Context) error
}

type Server struct {
	runtime runtime.Client
	store   RecordStore
	gate    *auth.Gate
	bridge  *shell.Bridge
	syncer  Syncer

	upgrader websocket.Upgrader
}

func NewServer(rt runtime.Client, rs RecordStore, gate *auth.Gate, bridge *shell.Bridge, syncer Syncer) *Server {
	return &Server{
		runtime: rt,
		store:   rs,
		gate:    gate,
		bridge:  bridge,
		syncer:  syncer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The bearer token is the admission control; the browser
			// origin is not.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ws", s.handleShell)

	mux.Handle("GET /api/containers", s.requireAuth(s.handleList))
	mux.Handle("GET /api/containers/images", s.requireAuth(s.handleImages))
	mux.Handle("GET /api/containers/sync", s.requireAuth(s.handleSync))
	mux.Handle("GET /api/containers/{id}", s.requireAuth(s.handleGet))
	mux.Handle("GET /api/containers/{id}/logs", s.requireAuth(s.handleLogs))
	mux.Handle("GET /api/containers/{id}/stats", s.requireAuth(s.handleStats))
	mux.Handle("POST /api/containers/{id}/start", s.requireAuth(s.handleStart))
	mux.Handle("POST /api/containers/{id}/stop", s.requireAuth(s.handleStop))
	mux.Handle("POST /api/containers/{id}/exec", s.requireAuth(s.handleExec))
	mux.Handle("DELETE /api/containers/{id}", s.requireAuth(s.handleRemove))
	mux.Handle("POST /api/images/build", s.requireAuth(s.handleBuild))
	return mux
}

// ListenAndServe serves until ctx is cancelled, then shuts down
// gracefully with a short drain window.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}

// handleShell upgrades the connection and hands it to the bridge. Auth
// happens inside the bridge so the client gets an error frame instead of
// a bare HTTP rejection.
func (s *Server) handleShell(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("websocket upgrade failed", "err", err)
		return
	}
	s.bridge.Handle(r.Context(), conn, r.URL.Query().Get("token"))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "OK",
		"timestamp": apiTimestamp(),
	})
}

var errRecordNotFound = store.ErrNotFound
