package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/IshaanNene/clearancesync/internal/config"
)

var (
	cfgFile     string
	verbose     bool
	targetURL   string
	headful     bool
	driver      string
	dsn         string
	snapshotDir string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "clearancesync",
		Short: "Sync clearance listings into a relational store",
		Long: `clearancesync renders a clearance category page in a headless browser,
scrolls until the product grid stops growing, extracts every listing and
upserts it into Postgres or SQLite keyed on the product URL.

Reruns never duplicate rows: existing products are refreshed in place.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&targetURL, "url", "", "listing page URL")
	rootCmd.PersistentFlags().BoolVar(&headful, "headful", false, "show the browser window")
	rootCmd.PersistentFlags().StringVar(&driver, "driver", "", "storage driver: postgres, pgx, sqlite")
	rootCmd.PersistentFlags().StringVar(&dsn, "dsn", "", "storage DSN (defaults to DATABASE_URL)")
	rootCmd.PersistentFlags().StringVar(&snapshotDir, "snapshot-dir", "", "archive each rendered page here")

	rootCmd.AddCommand(syncCmd())
	rootCmd.AddCommand(scheduleCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(runsCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig loads, overrides and validates the configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := applyCLIOverrides(cfg); err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("clearancesync %s\n", config.Version)
		},
	}
}

// configCmd prints the effective configuration as YAML.
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Storage.DSN != "" {
				cfg.Storage.DSN = "<redacted>"
			}
			if cfg.Events.MongoURI != "" {
				cfg.Events.MongoURI = "<redacted>"
			}
			if cfg.Schedule.LockRedisURL != "" {
				cfg.Schedule.LockRedisURL = "<redacted>"
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(cfg)
		},
	}
}

// setupLogger creates a structured logger from the logging config.
func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

// applyCLIOverrides applies command-line flag values to the config.
func applyCLIOverrides(cfg *config.Config) error {
	if targetURL != "" {
		if err := config.ValidateURL(targetURL); err != nil {
			return fmt.Errorf("invalid --url %q: %w", targetURL, err)
		}
		cfg.Target.URL = targetURL
		cfg.Target.Origin = ""
	}
	if headful {
		cfg.Browser.Headless = false
	}
	if driver != "" {
		cfg.Storage.Driver = strings.ToLower(driver)
	}
	if dsn != "" {
		cfg.Storage.DSN = dsn
	}
	if snapshotDir != "" {
		cfg.Snapshot.Dir = snapshotDir
	}
	return nil
}
