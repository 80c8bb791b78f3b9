//go:build windows

package store

import (
	"errors"
	"fmt"
	"sort"

	"golang.org/x/sys/windows/registry"

	"textservice/internal/host"
)

// DefaultRegistryKey is the per-user key holding style overrides.
const DefaultRegistryKey = `Software\TextService\DisplayAttributes`

// Registry stores style overrides as binary values under a HKCU key.
type Registry struct {
	key registry.Key
}

var _ Backend = (*Registry)(nil)

// OpenRegistry opens or creates keyPath under HKEY_CURRENT_USER.
func OpenRegistry(keyPath string) (*Registry, error) {
	if keyPath == "" {
		keyPath = DefaultRegistryKey
	}
	k, _, err := registry.CreateKey(registry.CURRENT_USER, keyPath, registry.QUERY_VALUE|registry.SET_VALUE)
	if err != nil {
		return nil, fmt.Errorf("open registry key %s: %w", keyPath, err)
	}
	return &Registry{key: k}, nil
}

// Close releases the key handle.
func (r *Registry) Close() error {
	return r.key.Close()
}

// Get returns the value stored under name, or host.ErrNotFound.
func (r *Registry) Get(name string) ([]byte, error) {
	data, _, err := r.key.GetBinaryValue(name)
	if errors.Is(err, registry.ErrNotExist) {
		return nil, fmt.Errorf("style override %q: %w", name, host.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read registry value %s: %w", name, err)
	}
	return data, nil
}

// Put writes record as a REG_BINARY value.
func (r *Registry) Put(name string, record []byte) error {
	if err := r.key.SetBinaryValue(name, record); err != nil {
		return fmt.Errorf("write registry value %s: %w", name, err)
	}
	return nil
}

// Delete removes the value stored under name.
func (r *Registry) Delete(name string) error {
	err := r.key.DeleteValue(name)
	if errors.Is(err, registry.ErrNotExist) {
		return fmt.Errorf("style override %q: %w", name, host.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("delete registry value %s: %w", name, err)
	}
	return nil
}

// List returns every value under the key. Values carry the key's
// modification time.
func (r *Registry) List() ([]Entry, error) {
	names, err := r.key.ReadValueNames(0)
	if err != nil {
		return nil, fmt.Errorf("list registry values: %w", err)
	}
	sort.Strings(names)

	info, err := r.key.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat registry key: %w", err)
	}

	entries := make([]Entry, 0, len(names))
	for _, name := range names {
		data, err := r.Get(name)
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{Name: name, Record: data, UpdatedAt: info.ModTime()})
	}
	return entries, nil
}
