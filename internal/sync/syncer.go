// Package sync mirrors runtime container state into the record store.
//
// A timer-driven loop lists every container, inspects each one
// independently, and upserts a normalized record. One broken container
// never aborts its siblings; only an unreachable runtime endpoint
// fails a whole tick, and then as a single error.
package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/docker/docker/api/types/container"

	"dockhand"
	"dockhand/internal/logging"
	"dockhand/internal/runtime"
)

// Store is the upsert surface the syncer writes through.
type Store interface {
	Upsert(ctx context.Context, rec dockhand.ContainerRecord) error
}

// Syncer reconciles runtime state into the store on a fixed interval,
// with an on-demand trigger for explicit sync requests.
type Syncer struct {
	Runtime  runtime.Client
	Store    Store
	Interval time.Duration

	trigger chan chan error
}

func New(rt runtime.Client, store Store, interval time.Duration) *Syncer {
	return &Syncer{
		Runtime:  rt,
		Store:    store,
		Interval: interval,
		trigger:  make(chan chan error),
	}
}

// Run drives the loop until ctx is cancelled. Ticks execute inline, so
// they are serialized: a tick that overruns its interval delays the next
// fire rather than overlapping it.
func (s *Syncer) Run(ctx context.Context) error {
	log := logging.Component("sync")

	// Initial tick so records exist before the first interval elapses.
	if err := s.tick(ctx); err != nil {
		log.Warn("initial sync failed", "err", err)
	}

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case reply := <-s.trigger:
			reply <- s.tick(ctx)
		case <-ticker.C:
			if err := s.tick(ctx); err != nil {
				log.Warn("sync tick failed", "err", err)
			}
		}
	}
}

// SyncNow runs one tick on demand and returns its result. The tick
// executes on the loop goroutine, keeping ticks serialized.
func (s *Syncer) SyncNow(ctx context.Context) error {
	reply := make(chan error, 1)
	select {
	case s.trigger <- reply:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// tick performs one full reconciliation pass. The up-front ping is the
// only failure that aborts the pass; per-container errors are logged
// and skipped.
func (s *Syncer) tick(ctx context.Context) error {
	if err := s.Runtime.Ping(ctx); err != nil {
		return fmt.Errorf("runtime unreachable: %w", err)
	}

	list, err := s.Runtime.ListContainers(ctx, true)
	if err != nil {
		return fmt.Errorf("list containers: %w", err)
	}

	synced := 0
	for _, c := range list {
		if err := s.syncOne(ctx, c); err != nil {
			// Containers removed between list and inspect are expected.
			if runtime.IsNotFound(err) {
				slog.Debug("container vanished during sync", "container", c.ID)
			} else {
				slog.Warn("container sync skipped", "container", c.ID, "err", err)
			}
			continue
		}
		synced++
	}
	slog.Debug("sync tick complete", "total", len(list), "synced", synced)
	return nil
}

// syncOne inspects a single container and upserts its record. The
// record is built entirely from a successful inspect; a failed stats
// snapshot degrades usage fields to zero instead of failing the record.
func (s *Syncer) syncOne(ctx context.Context, summary container.Summary) error {
	info, err := s.Runtime.Inspect(ctx, summary.ID)
	if err != nil {
		return err
	}

	rec := dockhand.ContainerRecord{
		ID:        info.ID,
		Name:      containerName(info.Name, summary),
		Image:     summary.Image,
		UpdatedAt: time.Now().UTC(),
	}
	if info.Config != nil {
		if info.Config.Image != "" {
			rec.Image = info.Config.Image
		}
		rec.Env = splitEnv(info.Config.Env)
	}
	if info.State != nil {
		rec.Status = dockhand.NormalizeStatus(info.State.Status)
	} else {
		rec.Status = dockhand.StatusStopped
	}
	if info.NetworkSettings != nil {
		rec.Ports = extractPorts(info.NetworkSettings.Ports)
	}
	rec.Mounts = extractMounts(info.Mounts)
	if created, err := time.Parse(time.RFC3339Nano, info.Created); err == nil {
		rec.CreatedAt = created.UTC()
	}

	// Usage fields are best-effort: a failed snapshot leaves them zero.
	if stats, err := s.Runtime.StatsOnce(ctx, summary.ID); err != nil {
		slog.Debug("stats unavailable", "container", summary.ID, "err", err)
	} else {
		rec.CPUPercent = cpuPercent(stats)
		rec.MemoryUsage = stats.MemoryStats.Usage
		rec.MemoryLimit = stats.MemoryStats.Limit
	}

	return s.Store.Upsert(ctx, rec)
}

func containerName(inspectName string, summary container.Summary) string {
	name := inspectName
	if len(name) > 0 && name[0] == '/' {
		name = name[1:]
	}
	if name == "" && len(summary.Names) > 0 {
		name = summary.Names[0]
		if len(name) > 0 && name[0] == '/' {
			name = name[1:]
		}
	}
	if name == "" {
		name = summary.ID
	}
	return name
}
