// Package store persists normalized container records in SQLite.
//
// Records are keyed by container ID and written with INSERT OR REPLACE,
// so the sync loop's upserts are idempotent and last-write-wins. The
// structured fields (ports, environment, mounts) are stored as JSON
// columns and read back whole, never queried into.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"dockhand"
)

const schema = `
CREATE TABLE IF NOT EXISTS containers (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	image        TEXT NOT NULL,
	status       TEXT NOT NULL,
	cpu_percent  REAL NOT NULL,
	memory_usage INTEGER NOT NULL,
	memory_limit INTEGER NOT NULL,
	ports        TEXT NOT NULL,
	env          TEXT NOT NULL,
	mounts       TEXT NOT NULL,
	created_at   TEXT NOT NULL,
	updated_at   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_containers_status ON containers (status);
`

// ErrNotFound is returned by Get when no record exists for the ID.
var ErrNotFound = errors.New("container record not found")

// Store is a SQLite-backed container record store.
type Store struct {
	db *sql.DB
}

// Open creates the database file (and parent directories) if needed and
// ensures the schema exists.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode = WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set journal mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Upsert inserts or overwrites the record keyed by its container ID.
func (s *Store) Upsert(ctx context.Context, rec dockhand.ContainerRecord) error {
	ports, err := json.Marshal(rec.Ports)
	if err != nil {
		return fmt.Errorf("upsert container: marshal ports: %w", err)
	}
	env, err := json.Marshal(rec.Env)
	if err != nil {
		return fmt.Errorf("upsert container: marshal env: %w", err)
	}
	mounts, err := json.Marshal(rec.Mounts)
	if err != nil {
		return fmt.Errorf("upsert container: marshal mounts: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO containers
		 (id, name, image, status, cpu_percent, memory_usage, memory_limit, ports, env, mounts, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.Name,
		rec.Image,
		string(rec.Status),
		rec.CPUPercent,
		rec.MemoryUsage,
		rec.MemoryLimit,
		string(ports),
		string(env),
		string(mounts),
		rec.CreatedAt.UTC().Format(time.RFC3339Nano),
		rec.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upsert container %s: %w", rec.ID, err)
	}
	return nil
}

const selectColumns = `SELECT id, name, image, status, cpu_percent, memory_usage, memory_limit, ports, env, mounts, created_at, updated_at FROM containers`

// List returns all records ordered by name.
func (s *Store) List(ctx context.Context) ([]dockhand.ContainerRecord, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+` ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list containers: %w", err)
	}
	defer rows.Close()

	var records []dockhand.ContainerRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("list containers: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list containers: %w", err)
	}
	return records, nil
}

// Get returns the record for id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (dockhand.ContainerRecord, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+` WHERE id = ?`, id)
	if err != nil {
		return dockhand.ContainerRecord{}, fmt.Errorf("get container %s: %w", id, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return dockhand.ContainerRecord{}, fmt.Errorf("get container %s: %w", id, err)
		}
		return dockhand.ContainerRecord{}, ErrNotFound
	}
	rec, err := scanRecord(rows)
	if err != nil {
		return dockhand.ContainerRecord{}, fmt.Errorf("get container %s: %w", id, err)
	}
	return rec, nil
}

// Delete removes the record for id. Deleting an absent record is not an
// error; the sync loop never deletes, only the explicit remove path does.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM containers WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete container %s: %w", id, err)
	}
	return nil
}

func scanRecord(rows *sql.Rows) (dockhand.ContainerRecord, error) {
	var (
		rec                            dockhand.ContainerRecord
		status                         string
		portsJSON, envJSON, mountsJSON string
		createdStr, updatedStr         string
	)
	if err := rows.Scan(
		&rec.ID, &rec.Name, &rec.Image, &status,
		&rec.CPUPercent, &rec.MemoryUsage, &rec.MemoryLimit,
		&portsJSON, &envJSON, &mountsJSON,
		&createdStr, &updatedStr,
	); err != nil {
		return dockhand.ContainerRecord{}, fmt.Errorf("scan container row: %w", err)
	}

	rec.Status = dockhand.ContainerStatus(status)
	if err := json.Unmarshal([]byte(portsJSON), &rec.Ports); err != nil {
		return dockhand.ContainerRecord{}, fmt.Errorf("parse ports for %s: %w", rec.ID, err)
	}
	if err := json.Unmarshal([]byte(envJSON), &rec.Env); err != nil {
		return dockhand.ContainerRecord{}, fmt.Errorf("parse env for %s: %w", rec.ID, err)
	}
	if err := json.Unmarshal([]byte(mountsJSON), &rec.Mounts); err != nil {
		return dockhand.ContainerRecord{}, fmt.Errorf("parse mounts for %s: %w", rec.ID, err)
	}

	var err error
	if rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdStr); err != nil {
		return dockhand.ContainerRecord{}, fmt.Errorf("parse created_at for %s: %w", rec.ID, err)
	}
	if rec.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedStr); err != nil {
		return dockhand.ContainerRecord{}, fmt.Errorf("parse updated_at for %s: %w", rec.ID, err)
	}
	return rec, nil
}
