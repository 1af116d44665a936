package app

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"abx-go/internal/abx"
	"abx-go/internal/config"
	"abx-go/internal/database"
)

// App is the application layer between the CLI and the Indexer.
// It constructs all dependencies from config, exposes high-level
// operations that accept raw identifiers and paths, and manages the DB
// lifecycle on Close.
type App struct {
	cfg     *config.Config
	store   abx.Store
	indexer *abx.Indexer
	logFile *os.File
}

// NewApp creates a fully wired App from the given config.
// operation identifies the CLI command being run (e.g. "Index", "Status").
// The caller must call Close when done.
func NewApp(cfg *config.Config, operation string) (*App, error) {
	store, err := database.NewStoreFromConfig(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("creating store: %w", err)
	}

	if err := store.CheckMigrations(); err != nil {
		store.Close()
		return nil, fmt.Errorf("database schema out of date: %w", err)
	}

	runID := time.Now().UTC().Format("20060102T150405Z")
	logger, logFile, err := newLogger(cfg.LogDir, runID+"/"+operation)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	indexer := abx.NewIndexer(store, &slogAdapter{l: logger},
		abx.RealClock{}, abx.UUIDGenerator{}, cfg.Indexing.BatchSize)

	return &App{
		cfg:     cfg,
		store:   store,
		indexer: indexer,
		logFile: logFile,
	}, nil
}

// Migrate creates the store from config and brings its schema to the
// latest version. Unlike NewApp it tolerates an out-of-date schema —
// that is the state it exists to fix.
func Migrate(cfg *config.Config) error {
	store, err := database.NewStoreFromConfig(cfg.Database)
	if err != nil {
		return fmt.Errorf("creating store: %w", err)
	}
	defer store.Close()

	if err := store.MigrateUp(); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}
	return nil
}

// AddBackup registers a backup under the given device identifier.
func (a *App) AddBackup(identifier string) (*abx.Backup, error) {
	existing, err := a.store.FindBackupByIdentifier(identifier)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("backup already registered: %s", identifier)
	}
	return a.store.CreateBackup(identifier)
}

// ListBackups returns all registered backups, newest first.
func (a *App) ListBackups() ([]*abx.Backup, error) {
	return a.store.ListBackups()
}

// Index runs a full ingestion for the backup with the given identifier.
// Artifact databases are discovered under bundleDir by their well-known
// filenames; overrides replaces the discovered path for specific kinds.
func (a *App) Index(identifier string, bundleDir string, overrides map[abx.Kind]string) error {
	sources := make(map[abx.Kind]string, len(abx.IngestOrder))
	for kind, filename := range abx.SourceFilenames {
		sources[kind] = filepath.Join(bundleDir, filename)
	}
	for kind, path := range overrides {
		if path != "" {
			sources[kind] = path
		}
	}
	return a.indexer.Run(identifier, sources)
}

// Status returns the backup's current state together with its per-table
// artifact row counts.
func (a *App) Status(identifier string) (*abx.Backup, map[string]int64, error) {
	backup, err := a.store.FindBackupByIdentifier(identifier)
	if err != nil {
		return nil, nil, err
	}
	if backup == nil {
		return nil, nil, fmt.Errorf("%w: %s", abx.ErrUnknownBackup, identifier)
	}

	counts, err := a.store.ArtifactCounts(backup.ID)
	if err != nil {
		return nil, nil, err
	}
	return backup, counts, nil
}

// Close closes all resources.
func (a *App) Close() error {
	var firstErr error
	if err := a.store.Close(); err != nil {
		firstErr = fmt.Errorf("closing store: %w", err)
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}
