package store

import "fmt"

// OpenBackend opens the backend named by kind. path is a database file for
// KindSQLite and a key path for KindRegistry.
func OpenBackend(kind, path string) (Backend, error) {
	switch kind {
	case "", KindSQLite:
		s, err := Open(path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case KindRegistry:
		r, err := OpenRegistry(path)
		if err != nil {
			return nil, err
		}
		return r, nil
	default:
		return nil, fmt.Errorf("unknown style backend %q", kind)
	}
}
