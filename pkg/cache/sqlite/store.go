// Package sqlite persists a cache as a relational table: one row per entry,
// one column per field, primary key = cache key.
package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/promptmemo/promptmemo/pkg/cache"
	"github.com/promptmemo/promptmemo/pkg/models"
)

// Store is the SQLite-backed persistent encoding of a cache.
type Store struct {
	db *sql.DB
}

const createCacheTable = `
CREATE TABLE IF NOT EXISTS cache_entries (
	key TEXT PRIMARY KEY,
	model TEXT NOT NULL,
	parameters TEXT NOT NULL,
	system_prompt TEXT NOT NULL,
	user_prompt TEXT NOT NULL,
	iteration INTEGER NOT NULL,
	output TEXT NOT NULL,
	timestamp INTEGER NOT NULL,
	service TEXT NOT NULL DEFAULT '',
	validated INTEGER NOT NULL DEFAULT 0
);
`

// Open opens (or creates) the store at dbPath and ensures the schema exists.
// Pointing Open at a populated database is fine: existing rows are kept and
// later saves overwrite matching keys.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}

	if _, err := db.Exec(createCacheTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate cache db: %w", err)
	}

	return &Store{db: db}, nil
}

// Save upserts every entry of c into the table inside one transaction.
func (s *Store) Save(c *cache.Cache) error {
	return s.SaveEntries(c.Entries())
}

// SaveEntries upserts the given entries. Callers flushing a session's
// increment pass cache.NewEntries().Entries() here instead of rewriting the
// whole store.
func (s *Store) SaveEntries(entries []*cache.Entry) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("cache save: %w", err)
	}
	stmt, err := tx.Prepare(
		`INSERT OR REPLACE INTO cache_entries
		 (key, model, parameters, system_prompt, user_prompt, iteration, output, timestamp, service, validated)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("cache save: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.Exec(
			e.Key(), e.Model, e.Parameters, e.SystemPrompt, e.UserPrompt,
			e.Iteration, e.Output, e.Timestamp, e.Service, boolToInt(e.Validated),
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("cache save entry %s: %w", e.Key(), err)
		}
	}
	return tx.Commit()
}

// Load reads every row into a fresh cache. Rows are keyed under their
// recomputed keys; the stored key column is only the table's primary key,
// never the source of truth.
func (s *Store) Load() (*cache.Cache, error) {
	entries, err := s.LoadEntries()
	if err != nil {
		return nil, err
	}
	return cache.FromEntries(entries), nil
}

// LoadEntries reads every persisted entry.
func (s *Store) LoadEntries() ([]*cache.Entry, error) {
	rows, err := s.db.Query(
		`SELECT model, parameters, system_prompt, user_prompt, iteration, output, timestamp, service, validated
		 FROM cache_entries`)
	if err != nil {
		return nil, fmt.Errorf("cache load: %w", err)
	}
	defer rows.Close()

	var entries []*cache.Entry
	for rows.Next() {
		var e cache.Entry
		var validated int
		if err := rows.Scan(
			&e.Model, &e.Parameters, &e.SystemPrompt, &e.UserPrompt,
			&e.Iteration, &e.Output, &e.Timestamp, &e.Service, &validated,
		); err != nil {
			return nil, fmt.Errorf("cache load: scan row: %w", err)
		}
		e.Validated = validated != 0
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("cache load: %w", err)
	}
	return entries, nil
}

// Stats reports the number of persisted entries.
func (s *Store) Stats() (models.CacheStats, error) {
	var count int64
	err := s.db.QueryRow(`SELECT COUNT(*) FROM cache_entries`).Scan(&count)
	if err != nil {
		return models.CacheStats{}, fmt.Errorf("cache stats: %w", err)
	}
	return models.CacheStats{Entries: count}, nil
}

// Clear removes every persisted entry.
func (s *Store) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM cache_entries`); err != nil {
		return fmt.Errorf("cache clear: %w", err)
	}
	return nil
}

// DB exposes the underlying handle for schema migration.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
