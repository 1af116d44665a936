package database

import (
	"testing"

	"abx-go/internal/config"
)

func TestNewStoreFromConfig(t *testing.T) {
	t.Run("memory store is migrated and usable", func(t *testing.T) {
		store, err := NewStoreFromConfig(config.DatabaseConfig{Type: "memory"})
		if err != nil {
			t.Fatalf("NewStoreFromConfig() error = %v", err)
		}
		defer store.Close()

		if err := store.CheckMigrations(); err != nil {
			t.Errorf("CheckMigrations() error = %v, want schema up to date", err)
		}
		if _, err := store.CreateBackup("device-1"); err != nil {
			t.Errorf("CreateBackup() error = %v", err)
		}
	})

	t.Run("sqlite requires data_dir", func(t *testing.T) {
		_, err := NewStoreFromConfig(config.DatabaseConfig{Type: "sqlite"})
		if err == nil {
			t.Fatal("NewStoreFromConfig() expected error for missing data_dir")
		}
	})

	t.Run("sqlite opens under data_dir", func(t *testing.T) {
		store, err := NewStoreFromConfig(config.DatabaseConfig{Type: "sqlite", DataDir: t.TempDir()})
		if err != nil {
			t.Fatalf("NewStoreFromConfig() error = %v", err)
		}
		defer store.Close()

		// Fresh file store needs migration before use.
		if err := store.MigrateUp(); err != nil {
			t.Fatalf("MigrateUp() error = %v", err)
		}
		if _, err := store.CreateBackup("device-1"); err != nil {
			t.Errorf("CreateBackup() error = %v", err)
		}
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := NewStoreFromConfig(config.DatabaseConfig{Type: "postgres"})
		if err == nil {
			t.Fatal("NewStoreFromConfig() expected error for unknown type")
		}
	})
}
