//go:build !windows

package store

import (
	"errors"
	"fmt"
)

// DefaultRegistryKey is the per-user key holding style overrides.
const DefaultRegistryKey = `Software\TextService\DisplayAttributes`

// ErrRegistryUnsupported is returned by OpenRegistry off Windows.
var ErrRegistryUnsupported = errors.New("registry backend requires windows")

// Registry is unavailable on this platform.
type Registry struct{ Backend }

// OpenRegistry always fails on this platform.
func OpenRegistry(keyPath string) (*Registry, error) {
	return nil, fmt.Errorf("open registry key %s: %w", keyPath, ErrRegistryUnsupported)
}
