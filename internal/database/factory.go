package database

import (
	"fmt"
	"path/filepath"

	"abx-go/internal/abx"
	"abx-go/internal/config"
)

// NewStoreFromConfig creates a Store implementation based on the database
// config type. A memory store is migrated to the latest schema on the
// spot since nothing else ever touches it.
func NewStoreFromConfig(cfg config.DatabaseConfig) (abx.Store, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		dbPath := filepath.Join(cfg.DataDir, "abx.db")
		return NewSQLiteStore(dbPath, nil, nil)
	case "memory":
		store, err := NewSQLiteStore(":memory:", nil, nil)
		if err != nil {
			return nil, err
		}
		if err := store.MigrateUp(); err != nil {
			store.Close()
			return nil, fmt.Errorf("migrating memory database: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}
