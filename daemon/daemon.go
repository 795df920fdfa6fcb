// Package daemon wires the dockhand components together and runs them.
package daemon

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"dockhand/api"
	"dockhand/config"
	"dockhand/internal/auth"
	"dockhand/internal/runtime"
	"dockhand/internal/shell"
	"dockhand/internal/store"
	"dockhand/internal/sync"
)

// Run builds every component from cfg and blocks until ctx is cancelled
// or a component fails: the HTTP/WebSocket server, the sync loop, and
// the session heartbeat all run under one errgroup.
func Run(ctx context.Context, cfg config.Config) error {
	rt, err := runtime.NewDocker(cfg.DockerHost)
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			slog.Warn("close record store", "err", err)
		}
	}()

	gate := auth.NewGate(cfg.JWTSecret)
	registry := shell.NewRegistry(cfg.HeartbeatInterval)
	bridge := &shell.Bridge{Runtime: rt, Auth: gate, Registry: registry}
	syncer := sync.New(rt, st, cfg.SyncInterval)
	server := api.NewServer(rt, st, gate, bridge, syncer)

	slog.Info("daemon starting",
		"listen", cfg.Listen,
		"db", cfg.DatabasePath,
		"sync_interval", cfg.SyncInterval,
		"heartbeat_interval", cfg.HeartbeatInterval,
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.ListenAndServe(ctx, cfg.Listen) })
	g.Go(func() error { return syncer.Run(ctx) })
	g.Go(func() error {
		registry.Run(ctx)
		return nil
	})
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	slog.Info("daemon stopped")
	return nil
}
