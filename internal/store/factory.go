package store

import (
	"fmt"
	"os"
	"path/filepath"

	"babylog/internal/config"
	"babylog/internal/remote"
)

// DatabaseFile is the name of the SQLite database inside data_dir.
const DatabaseFile = "babylog.db"

// NewStoreFromConfig creates a Store implementation based on the store config type.
// remoteCfg is only used when the type is "remote".
func NewStoreFromConfig(cfg config.StoreConfig, remoteCfg remote.Config) (Store, error) {
	switch cfg.Type {
	case "remote", "":
		return remote.NewClient(remoteCfg), nil
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite store")
		}
		if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		s, err := NewSQLiteStore(filepath.Join(cfg.DataDir, DatabaseFile), nil, nil)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "memory":
		return NewMemoryStore(nil), nil
	default:
		return nil, fmt.Errorf("unknown store type: %s", cfg.Type)
	}
}
