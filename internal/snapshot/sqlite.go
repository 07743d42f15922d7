// Package snapshot persists the query cache to a local SQLite database so a
// new process starts warm. Reloaded entries keep their recorded fetch time,
// so they are typically served stale-while-revalidate on first read - the
// server stays authoritative.
package snapshot

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sibyl-dev/sibyl-go/internal/cache"
	"github.com/sibyl-dev/sibyl-go/pkg/sibyl"
)

// Store is a SQLite-backed (WAL mode) snapshot of cache entries.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or opens the snapshot database at dbPath, creating parent
// directories as needed.
func Open(dbPath string) (*Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("snapshot db path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("exec %q: %w", p, err)
		}
	}

	s := &Store{db: db, path: dbPath}
	if err := s.ensureSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return s, nil
}

func (s *Store) ensureSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS cache_entries (
		kind       TEXT NOT NULL,
		id         TEXT NOT NULL DEFAULT '',
		params     TEXT NOT NULL DEFAULT '',
		payload    TEXT NOT NULL,
		fetched_at TEXT NOT NULL,
		PRIMARY KEY(kind, id, params)
	);`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create cache_entries: %w", err)
	}
	return nil
}

// Close closes the underlying database. Implements io.Closer.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save replaces the stored snapshot with the given dump. Entries whose
// values don't marshal are skipped rather than failing the whole save.
func (s *Store) Save(snaps []cache.Snapshot) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin snapshot save: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM cache_entries"); err != nil {
		return fmt.Errorf("clear snapshot: %w", err)
	}

	stmt, err := tx.Prepare("INSERT INTO cache_entries (kind, id, params, payload, fetched_at) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare snapshot insert: %w", err)
	}
	defer stmt.Close()

	for _, snap := range snaps {
		payload, err := json.Marshal(snap.Value)
		if err != nil {
			continue
		}
		_, err = stmt.Exec(snap.Key.Kind, snap.Key.ID, snap.Key.Params, string(payload), snap.FetchedAt.UTC().Format(time.RFC3339Nano))
		if err != nil {
			return fmt.Errorf("insert snapshot entry %s: %w", snap.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot save: %w", err)
	}
	return nil
}

// Load seeds the cache with every decodable stored entry and returns the
// number seeded. Entries of unknown kinds or with malformed payloads are
// dropped silently - a snapshot is an optimization, never a source of truth.
func (s *Store) Load(store *cache.Store) (int, error) {
	rows, err := s.db.Query("SELECT kind, id, params, payload, fetched_at FROM cache_entries")
	if err != nil {
		return 0, fmt.Errorf("query snapshot: %w", err)
	}
	defer rows.Close()

	loaded := 0
	for rows.Next() {
		var kind, id, params, payload, fetchedAt string
		if err := rows.Scan(&kind, &id, &params, &payload, &fetchedAt); err != nil {
			return loaded, fmt.Errorf("scan snapshot entry: %w", err)
		}

		key := cache.Key{Kind: kind, ID: id, Params: params}
		value, err := decodeValue(key, []byte(payload))
		if err != nil {
			continue
		}

		ts, err := time.Parse(time.RFC3339Nano, fetchedAt)
		if err != nil {
			continue
		}

		store.Seed(key, value, ts)
		loaded++
	}

	if err := rows.Err(); err != nil {
		return loaded, fmt.Errorf("iterate snapshot: %w", err)
	}
	return loaded, nil
}

// decodeValue restores the typed value a slot held when it was dumped.
// The kind names here mirror the keys used by the CLI's resource hooks.
func decodeValue(key cache.Key, payload []byte) (any, error) {
	unmarshal := func(v any) (any, error) {
		if err := json.Unmarshal(payload, v); err != nil {
			return nil, err
		}
		return v, nil
	}

	switch key.Kind {
	case "entity":
		if key.IsList() {
			return unmarshal(&sibyl.EntityListResponse{})
		}
		return unmarshal(&sibyl.Entity{})
	case "task":
		if key.IsList() {
			return unmarshal(&sibyl.TaskListResponse{})
		}
		return unmarshal(&sibyl.Task{})
	case "agent":
		if key.IsList() {
			return unmarshal(&sibyl.AgentListResponse{})
		}
		return unmarshal(&sibyl.Agent{})
	case "session":
		if key.IsList() {
			return unmarshal(&sibyl.SessionListResponse{})
		}
		return unmarshal(&sibyl.PlanningSession{})
	case "stats":
		return unmarshal(&sibyl.Stats{})
	default:
		return nil, fmt.Errorf("unknown cache kind: %q", key.Kind)
	}
}
