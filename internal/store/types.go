// Package store persists display attribute overrides.
//
// Two backends share the Backend interface: a SQLite database (the default,
// portable) and, on Windows, a registry key.
package store

import "time"

// Backend is a style override store.
type Backend interface {
	Get(name string) ([]byte, error)
	Put(name string, record []byte) error
	Delete(name string) error
	List() ([]Entry, error)
	Close() error
}

// Entry is one stored override.
type Entry struct {
	Name      string
	Record    []byte
	UpdatedAt time.Time
}

// Backend kinds accepted by OpenBackend.
const (
	KindSQLite   = "sqlite"
	KindRegistry = "registry"
)
