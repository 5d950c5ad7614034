// Package handler locates (or creates) the default persistent cache a
// process should use when the caller has not supplied one. It is an explicit
// provider rather than global state so tests can point it at a temp path.
package handler

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/promptmemo/promptmemo/pkg/cache"
	"github.com/promptmemo/promptmemo/pkg/cache/jsonl"
	"github.com/promptmemo/promptmemo/pkg/cache/sqlite"
)

// ErrCacheInit means the configured cache location could not be opened or
// created. The handler never falls back to an in-memory cache on its own:
// that would silently turn persistent caching off.
var ErrCacheInit = errors.New("cache init failed")

// ErrMigration means an on-disk store is in a layout that cannot be
// upgraded.
var ErrMigration = errors.New("cache migration failed")

// Handler resolves the process-default persistent cache at a configured
// path.
type Handler struct {
	path string
	opts []cache.Option
}

// New creates a Handler for the given on-disk location. Options are applied
// to the cache built from the store, so callers can request deferred writes
// or a default service name on the persistent cache.
func New(path string, opts ...cache.Option) *Handler {
	return &Handler{path: path, opts: opts}
}

// PersistentCache couples an in-memory cache with the SQLite store it was
// loaded from, so a session's additions can be flushed back on exit.
type PersistentCache struct {
	*cache.Cache
	store *sqlite.Store
}

// Flush persists the entries added during this session.
func (p *PersistentCache) Flush() error {
	return p.store.SaveEntries(p.NewEntries().Entries())
}

// Backing returns the underlying SQLite store.
func (p *PersistentCache) Backing() *sqlite.Store {
	return p.store
}

// Close flushes session additions and releases the store.
func (p *PersistentCache) Close() error {
	if err := p.Flush(); err != nil {
		p.store.Close()
		return err
	}
	return p.store.Close()
}

// GetCache opens or creates the default store, migrating legacy on-disk
// layouts first, and loads it into memory. Migration is idempotent: a second
// run over an already-migrated store is a no-op.
func (h *Handler) GetCache() (*PersistentCache, error) {
	if dir := filepath.Dir(h.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: create %s: %v", ErrCacheInit, dir, err)
		}
	}

	legacy, err := migrateFile(h.path)
	if err != nil {
		return nil, err
	}

	store, err := sqlite.Open(h.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheInit, err)
	}

	if err := migrateSchema(store.DB()); err != nil {
		store.Close()
		return nil, err
	}

	if legacy != nil {
		if err := store.Save(legacy); err != nil {
			store.Close()
			return nil, fmt.Errorf("%w: import legacy entries: %v", ErrMigration, err)
		}
	}

	entries, err := store.LoadEntries()
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("%w: %v", ErrCacheInit, err)
	}

	return &PersistentCache{Cache: cache.FromEntries(entries, h.opts...), store: store}, nil
}

var sqliteHeader = []byte("SQLite format 3\x00")

// migrateFile converts a pre-relational store (a plain-dict JSON export or an
// append log) into entries to import, moving the old file aside so the path
// is free for the SQLite database. It returns nil when the path is absent or
// already relational.
func migrateFile(path string) (*cache.Cache, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrCacheInit, path, err)
	}
	if len(data) == 0 || bytes.HasPrefix(data, sqliteHeader) {
		return nil, nil
	}

	legacy, err := parseLegacy(path, data)
	if err != nil {
		return nil, err
	}

	if err := os.Rename(path, path+".legacy"); err != nil {
		return nil, fmt.Errorf("%w: move legacy store aside: %v", ErrMigration, err)
	}
	return legacy, nil
}

func parseLegacy(path string, data []byte) (*cache.Cache, error) {
	// A dict export is one JSON object mapping key -> entry. Re-line the
	// values and reuse the append-log decoder so missing-field handling
	// stays in one place.
	var dict map[string]json.RawMessage
	if err := json.Unmarshal(data, &dict); err == nil && dictOfObjects(dict) {
		var buf bytes.Buffer
		for _, raw := range dict {
			buf.Write(raw)
			buf.WriteByte('\n')
		}
		c, err := jsonl.Read(&buf)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMigration, path, err)
		}
		return c, nil
	}

	c, err := jsonl.Read(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %s is neither a cache database, a dict export, nor an append log: %v", ErrMigration, path, err)
	}
	return c, nil
}

// dictOfObjects distinguishes a dict export from a one-line append log:
// every value of a dict export is itself an entry object.
func dictOfObjects(dict map[string]json.RawMessage) bool {
	if len(dict) == 0 {
		return false
	}
	for _, raw := range dict {
		trimmed := bytes.TrimSpace(raw)
		if len(trimmed) == 0 || trimmed[0] != '{' {
			return false
		}
	}
	return true
}

// requiredColumns is the full column set of the current schema. service and
// validated were added after the first release and are backfilled in place.
var requiredColumns = []string{
	"key", "model", "parameters", "system_prompt", "user_prompt",
	"iteration", "output", "timestamp", "service", "validated",
}

var addedColumns = map[string]string{
	"service":   `ALTER TABLE cache_entries ADD COLUMN service TEXT NOT NULL DEFAULT ''`,
	"validated": `ALTER TABLE cache_entries ADD COLUMN validated INTEGER NOT NULL DEFAULT 0`,
}

// migrateSchema upgrades a legacy cache_entries table to the current column
// set. A table missing a column we cannot backfill is an unknown schema
// version and is surfaced rather than guessed at.
func migrateSchema(db *sql.DB) error {
	have, err := tableColumns(db, "cache_entries")
	if err != nil {
		return fmt.Errorf("%w: inspect schema: %v", ErrMigration, err)
	}
	for _, col := range requiredColumns {
		if have[col] {
			continue
		}
		stmt, ok := addedColumns[col]
		if !ok {
			return fmt.Errorf("%w: cache_entries is missing column %q (unknown schema version)", ErrMigration, col)
		}
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("%w: add column %s: %v", ErrMigration, col, err)
		}
	}
	return nil
}

func tableColumns(db *sql.DB, table string) (map[string]bool, error) {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull int
		var dflt sql.NullString
		var pk int
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return nil, err
		}
		cols[name] = true
	}
	return cols, rows.Err()
}
