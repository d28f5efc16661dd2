// Package kv provides the small key-value blob stores that back local client state.
package kv

import (
	"errors"
	"fmt"
	"path/filepath"
)

var ErrNotFound = errors.New("key not found")

// Store holds opaque values under string keys.
type Store interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Delete(key string) error
	Close() error
}

const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Open returns the store for backend rooted at dir.
func Open(backend, dir string) (Store, error) {
	switch backend {
	case "", BackendFile:
		return NewFileStore(filepath.Join(dir, "state")), nil
	case BackendSQLite:
		return OpenSQLite(filepath.Join(dir, "state.db"))
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}
