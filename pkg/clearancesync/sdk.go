// Package clearancesync embeds the listing synchronizer as a library.
//
// Example usage:
//
//	s, err := clearancesync.New(ctx,
//	    clearancesync.WithDatabase("sqlite", "./products.db"),
//	    clearancesync.WithStableRounds(5),
//	)
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
//	if err := s.Migrate(ctx); err != nil {
//	    return err
//	}
//	res, err := s.Sync(ctx)
package clearancesync

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/IshaanNene/clearancesync/internal/config"
	"github.com/IshaanNene/clearancesync/internal/db"
	"github.com/IshaanNene/clearancesync/internal/engine"
	"github.com/IshaanNene/clearancesync/internal/fetcher"
	"github.com/IshaanNene/clearancesync/internal/storage"
	"github.com/IshaanNene/clearancesync/internal/types"
)

// Result summarizes one sync: rows inserted, rows refreshed and batch size.
type Result = types.SyncResult

// Product is a stored listing.
type Product = types.PersistedProduct

// Option configures a Syncer.
type Option func(*config.Config)

// WithURL sets the listing page.
func WithURL(rawURL string) Option {
	return func(c *config.Config) {
		c.Target.URL = rawURL
		c.Target.Origin = ""
	}
}

// WithProductSelector sets the CSS selector matching product cells.
func WithProductSelector(sel string) Option {
	return func(c *config.Config) { c.Target.ProductSelector = sel }
}

// WithDatabase sets the storage driver (postgres, pgx, sqlite) and DSN.
func WithDatabase(driver, dsn string) Option {
	return func(c *config.Config) {
		c.Storage.Driver = driver
		c.Storage.DSN = dsn
	}
}

// WithHeadless toggles headless browsing.
func WithHeadless(headless bool) Option {
	return func(c *config.Config) { c.Browser.Headless = headless }
}

// WithBrowserBin uses a specific Chromium binary.
func WithBrowserBin(path string) Option {
	return func(c *config.Config) { c.Browser.BinPath = path }
}

// WithStableRounds sets how many unchanged measurements end scrolling.
func WithStableRounds(n int) Option {
	return func(c *config.Config) { c.Scroll.StableRounds = n }
}

// WithMaxScrolls caps the scroll loop.
func WithMaxScrolls(n int) Option {
	return func(c *config.Config) { c.Scroll.MaxIterations = n }
}

// WithClickMore toggles clicking "show more" controls while scrolling.
func WithClickMore(enabled bool) Option {
	return func(c *config.Config) { c.Scroll.ClickMore = enabled }
}

// WithRetry sets the attempt count and base backoff.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(c *config.Config) {
		c.Retry.MaxAttempts = attempts
		c.Retry.Backoff = backoff
	}
}

// WithSnapshotDir archives every rendered page under dir.
func WithSnapshotDir(dir string) Option {
	return func(c *config.Config) { c.Snapshot.Dir = dir }
}

// WithVerbose enables debug-level logging.
func WithVerbose() Option {
	return func(c *config.Config) { c.Logging.Level = "debug" }
}

// Syncer is the high-level API.
type Syncer struct {
	cfg    *config.Config
	conn   *sql.DB
	store  *storage.SQLStore
	runner *engine.Runner
	logger *slog.Logger
}

// New opens the store and prepares a runner. Close releases the store.
func New(ctx context.Context, opts ...Option) (*Syncer, error) {
	cfg := config.DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := config.ValidateStorage(cfg); err != nil {
		return nil, err
	}

	level := slog.LevelInfo
	if cfg.Logging.Level == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	conn, err := db.Open(ctx, cfg.Storage.Driver, cfg.Storage.DSN, cfg.Storage.MaxOpenConns)
	if err != nil {
		return nil, err
	}
	store, err := storage.NewSQLStore(conn, cfg.Storage.Driver, logger)
	if err != nil {
		conn.Close()
		return nil, err
	}

	var runnerOpts []engine.Option
	if cfg.Snapshot.Dir != "" {
		archive, err := fetcher.NewSnapshotArchive(cfg.Snapshot.Dir, logger)
		if err != nil {
			conn.Close()
			return nil, err
		}
		runnerOpts = append(runnerOpts, engine.WithSnapshotArchive(archive))
	}

	runner, err := engine.NewRunner(cfg, fetcher.NewRodLauncher(cfg.Browser, logger), store, logger, runnerOpts...)
	if err != nil {
		conn.Close()
		return nil, err
	}

	return &Syncer{cfg: cfg, conn: conn, store: store, runner: runner, logger: logger}, nil
}

// Migrate creates the products table if missing.
func (s *Syncer) Migrate(ctx context.Context) error {
	return s.store.Migrate(ctx)
}

// Sync runs one harvest-and-persist cycle.
func (s *Syncer) Sync(ctx context.Context) (Result, error) {
	return s.runner.RunSync(ctx)
}

// Products returns up to limit stored products, most recently updated first.
func (s *Syncer) Products(ctx context.Context, limit int) ([]Product, error) {
	return s.store.List(ctx, limit)
}

// Close releases the database handle.
func (s *Syncer) Close() error {
	return s.conn.Close()
}
