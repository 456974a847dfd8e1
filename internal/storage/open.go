package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	BackendMemory = "memory"
	BackendBadger = "badger"
	BackendBolt   = "bolt"
	BackendSQLite = "sqlite"
)

// Config selects and locates an engine backend.
type Config struct {
	Backend string
	Path    string
}

// Open builds the engine named by cfg.Backend. File-backed engines create
// cfg.Path's parent directories as needed; badger treats Path as a directory.
func Open(cfg Config) (Engine, error) {
	switch cfg.Backend {
	case BackendMemory, "":
		return NewMemStore(), nil
	case BackendBadger:
		if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
			return nil, fmt.Errorf("create badger dir: %w", err)
		}
		return NewBadgerStore(cfg.Path)
	case BackendBolt:
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("create bolt dir: %w", err)
		}
		return NewBoltStore(cfg.Path)
	case BackendSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
		return NewSQLiteStore(cfg.Path)
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
}
