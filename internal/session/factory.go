package session

import (
	"fmt"

	"babylog/internal/babylog"
	"babylog/internal/config"
)

// NewSessionStoreFromConfig creates a SessionStore implementation based on the config type.
func NewSessionStoreFromConfig(cfg config.SessionConfig) (babylog.SessionStore, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryStore(), nil
	case "filesystem":
		if cfg.Dir == "" {
			return nil, fmt.Errorf("filesystem session store requires dir to be set")
		}
		s, err := NewFileSystemStore(cfg.Dir)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown session store type: %s", cfg.Type)
	}
}
