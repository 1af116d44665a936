package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"abx-go/internal/abx"
	"abx-go/internal/app"
	"abx-go/internal/config"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an App. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "Index", "Status").
func newApp(operation string) (*app.App, error) {
	cfg, err := readConfig()
	if err != nil {
		return nil, err
	}

	a, err := app.NewApp(cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

func readConfig() (*config.Config, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return cfg, nil
}

var rootCmd = &cobra.Command{
	Use:   "abx",
	Short: "Personal device artifact indexer",
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:  %s\n", cfg.LogDir)
		fmt.Printf("Database: %s (%s)\n", cfg.Database.Type, cfg.Database.DataDir)
		return nil
	},
}

// migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Bring the index database schema up to date",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := readConfig()
		if err != nil {
			return err
		}

		if err := app.Migrate(cfg); err != nil {
			return err
		}
		fmt.Println("Database schema is up to date.")
		return nil
	},
}

// backup command
var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Manage registered backups",
}

var backupAddCmd = &cobra.Command{
	Use:   "add IDENTIFIER",
	Short: "Register a backup by its device identifier",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("AddBackup")
		if err != nil {
			return err
		}
		defer a.Close()

		backup, err := a.AddBackup(args[0])
		if err != nil {
			return fmt.Errorf("registering backup: %w", err)
		}

		fmt.Printf("Registered backup %s (%s)\n", backup.Identifier, backup.ID)
		return nil
	},
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered backups",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("ListBackups")
		if err != nil {
			return err
		}
		defer a.Close()

		backups, err := a.ListBackups()
		if err != nil {
			return err
		}

		if len(backups) == 0 {
			fmt.Println("No backups registered.")
			return nil
		}

		for _, b := range backups {
			indexedAt := "never"
			if b.LastIndexedAt != nil {
				indexedAt = b.LastIndexedAt.Format("2006-01-02 15:04:05")
			}
			fmt.Printf("%-36s  %-8s  indexed:%s\n", b.Identifier, b.Status, indexedAt)
		}
		return nil
	},
}

// index command
var indexCmd = &cobra.Command{
	Use:   "index IDENTIFIER BUNDLE_DIR",
	Short: "Ingest a backup's artifact databases into the index",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Index")
		if err != nil {
			return err
		}
		defer a.Close()

		bundleDir, err := filepath.Abs(args[1])
		if err != nil {
			return fmt.Errorf("resolving bundle directory: %w", err)
		}

		overrides := make(map[abx.Kind]string, len(abx.IngestOrder))
		for _, kind := range abx.IngestOrder {
			path, _ := cmd.Flags().GetString(string(kind))
			overrides[kind] = path
		}

		if err := a.Index(args[0], bundleDir, overrides); err != nil {
			return fmt.Errorf("indexing failed: %w", err)
		}

		fmt.Printf("Indexed backup %s\n", args[0])
		return nil
	},
}

// status command
var statusCmd = &cobra.Command{
	Use:   "status IDENTIFIER",
	Short: "View a backup's indexing state and artifact counts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Status")
		if err != nil {
			return err
		}
		defer a.Close()

		backup, counts, err := a.Status(args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Backup:   %s\n", backup.Identifier)
		fmt.Printf("Status:   %s\n", backup.Status)
		if backup.Status == abx.StatusIndexing {
			fmt.Printf("Progress: %d/%d", backup.Progress, backup.ProgressTotal)
			if backup.CurrentArtifact != "" {
				fmt.Printf(" (%s)", backup.CurrentArtifact)
			}
			fmt.Println()
		}
		if backup.LastError != "" {
			fmt.Printf("Error:    %s\n", backup.LastError)
		}
		if backup.LastIndexedAt != nil {
			fmt.Printf("Indexed:  %s\n", backup.LastIndexedAt.Format("2006-01-02 15:04:05"))
		}

		tables := make([]string, 0, len(counts))
		for table := range counts {
			tables = append(tables, table)
		}
		sort.Strings(tables)

		fmt.Println()
		for _, table := range tables {
			fmt.Printf("%-22s %d\n", table, counts[table])
		}
		return nil
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// backup subcommands
	backupCmd.AddCommand(backupAddCmd)
	backupCmd.AddCommand(backupListCmd)

	// per-kind source overrides for index
	for _, kind := range abx.IngestOrder {
		indexCmd.Flags().String(string(kind),
			"", fmt.Sprintf("Override the %s database path", kind))
	}

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(statusCmd)
}
