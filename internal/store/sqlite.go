package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"textservice/internal/host"
)

// Store is the SQLite style override store.
type Store struct {
	db *sql.DB
}

var _ Backend = (*Store)(nil)

// Open opens or creates the SQLite database at the given path and runs migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := MigrateDB(db); err != nil {
		db.Close()
		return nil, err
	}
	if err := ValidateSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("validate schema: %w", err)
	}

	return &Store{db: db}, nil
}

// MigrationStatus reports the schema version of the database.
func (s *Store) MigrationStatus() (*MigrationStatus, error) {
	return GetMigrationStatus(s.db)
}

// RollbackMigration undoes the latest applied migration. The next Open
// applies it again.
func (s *Store) RollbackMigration() error {
	return RollbackMigration(s.db)
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Get returns the stored record for name, or host.ErrNotFound.
func (s *Store) Get(name string) ([]byte, error) {
	var record []byte
	err := s.db.QueryRow(`SELECT record FROM style_overrides WHERE name = ?`, name).Scan(&record)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("style override %q: %w", name, host.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get style override: %w", err)
	}
	return record, nil
}

// Put stores record under name, replacing any previous value.
func (s *Store) Put(name string, record []byte) error {
	_, err := s.db.Exec(`
		INSERT INTO style_overrides (name, record, updated_ns) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET record = excluded.record, updated_ns = excluded.updated_ns`,
		name, record, time.Now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("put style override: %w", err)
	}
	return nil
}

// Delete removes the record stored under name.
func (s *Store) Delete(name string) error {
	result, err := s.db.Exec(`DELETE FROM style_overrides WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete style override: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("style override %q: %w", name, host.ErrNotFound)
	}
	return nil
}

// List returns every stored override ordered by name.
func (s *Store) List() ([]Entry, error) {
	rows, err := s.db.Query(`SELECT name, record, updated_ns FROM style_overrides ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list style overrides: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var updated int64
		if err := rows.Scan(&e.Name, &e.Record, &updated); err != nil {
			return nil, fmt.Errorf("scan style override: %w", err)
		}
		e.UpdatedAt = time.Unix(0, updated)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
