package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/clearancesync/internal/config"
	"github.com/IshaanNene/clearancesync/internal/db"
	"github.com/IshaanNene/clearancesync/internal/engine"
	"github.com/IshaanNene/clearancesync/internal/fetcher"
	"github.com/IshaanNene/clearancesync/internal/observability"
	"github.com/IshaanNene/clearancesync/internal/scheduler"
	"github.com/IshaanNene/clearancesync/internal/storage"
)

var (
	migrateFirst bool
	exportFormat string
	exportOutput string
	exportLimit  int
	runsLimit    int64
)

// app holds the resources shared by the sync and schedule commands.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	conn    *sql.DB
	store   *storage.SQLStore
	runner  *engine.Runner
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// openStore opens the database handle and the product store on top of it.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sql.DB, *storage.SQLStore, error) {
	if err := config.ValidateStorage(cfg); err != nil {
		return nil, nil, err
	}
	conn, err := db.Open(ctx, cfg.Storage.Driver, cfg.Storage.DSN, cfg.Storage.MaxOpenConns)
	if err != nil {
		return nil, nil, err
	}
	store, err := storage.NewSQLStore(conn, cfg.Storage.Driver, logger)
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	return conn, store, nil
}

// newApp wires the runner and every configured report sink.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := setupLogger(cfg.Logging)
	a := &app{cfg: cfg, logger: logger}

	conn, store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.conn, a.store = conn, store
	a.closers = append(a.closers, func() { conn.Close() })

	if migrateFirst {
		if err := store.Migrate(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}

	recorders := []engine.Recorder{observability.NewLogRecorder(logger)}

	if cfg.Metrics.Enabled {
		metrics := observability.NewMetrics(logger)
		srv := metrics.StartServer(cfg.Metrics.Port, cfg.Metrics.Path)
		recorders = append(recorders, metrics)
		a.closers = append(a.closers, func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		})
	}

	if cfg.Events.MongoURI != "" {
		mongoRec, err := observability.NewMongoRecorder(ctx, cfg.Events.MongoURI, cfg.Events.MongoDatabase, cfg.Events.MongoCollection, logger)
		if err != nil {
			logger.Warn("run history disabled", "error", err)
		} else {
			recorders = append(recorders, mongoRec)
			a.closers = append(a.closers, func() { _ = mongoRec.Close(context.Background()) })
		}
	}

	opts := []engine.Option{engine.WithRecorders(recorders...)}
	if cfg.Snapshot.Dir != "" {
		archive, err := fetcher.NewSnapshotArchive(cfg.Snapshot.Dir, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		opts = append(opts, engine.WithSnapshotArchive(archive))
	}

	launcher := fetcher.NewRodLauncher(cfg.Browser, logger)
	runner, err := engine.NewRunner(cfg, launcher, store, logger, opts...)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.runner = runner
	return a, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// syncCmd creates the "sync" subcommand.
func syncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one sync",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.runner.RunSync(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("saved=%d updated=%d total=%d\n", res.Saved, res.Updated, res.Total)
			return nil
		},
	}
	cmd.Flags().BoolVar(&migrateFirst, "migrate", false, "create the schema before syncing")
	return cmd
}

// scheduleCmd creates the "schedule" subcommand.
func scheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run syncs on the configured cron spec until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			var locker scheduler.Locker
			if url := a.cfg.Schedule.LockRedisURL; url != "" {
				rl, err := scheduler.NewRedisLocker(ctx, url, a.cfg.Schedule.LockKey, a.cfg.Schedule.LockTTL)
				if err != nil {
					return err
				}
				defer rl.Close()
				locker = rl
			}

			s := scheduler.New(a.cfg.Schedule.Spec, a.cfg.Schedule.RunOnStart, a.runner, locker, a.logger)
			if err := s.Start(ctx); err != nil {
				return err
			}

			<-ctx.Done()
			a.logger.Info("received signal, shutting down...")
			s.Stop()
			return nil
		},
	}
	cmd.Flags().BoolVar(&migrateFirst, "migrate", false, "create the schema before the first run")
	return cmd
}

// migrateCmd creates the "migrate" subcommand.
func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the products table if missing",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			conn, store, err := openStore(ctx, cfg, setupLogger(cfg.Logging))
			if err != nil {
				return err
			}
			defer conn.Close()

			return store.Migrate(ctx)
		},
	}
}

// exportCmd creates the "export" subcommand.
func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write stored products as JSON, JSONL or CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := setupLogger(cfg.Logging)
			conn, store, err := openStore(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer conn.Close()

			out := cmd.OutOrStdout()
			if exportOutput != "" && exportOutput != "-" {
				f, err := os.Create(exportOutput)
				if err != nil {
					return fmt.Errorf("create output file: %w", err)
				}
				defer f.Close()
				out = f
			}

			n, err := storage.Export(ctx, store, out, exportFormat, exportLimit)
			if err != nil {
				return err
			}
			logger.Info("export complete", "products", n, "format", exportFormat)
			return nil
		},
	}
	cmd.Flags().StringVarP(&exportFormat, "format", "f", storage.FormatJSON, "output format: json, jsonl, csv")
	cmd.Flags().StringVarP(&exportOutput, "output", "o", "-", "output file, - for stdout")
	cmd.Flags().IntVarP(&exportLimit, "limit", "n", 0, "maximum products (0 = all)")
	return cmd
}

// runsCmd creates the "runs" subcommand listing recorded run reports.
func runsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show recent run reports from MongoDB",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Events.MongoURI == "" {
				return fmt.Errorf("events.mongo_uri is not configured")
			}

			rec, err := observability.NewMongoRecorder(ctx, cfg.Events.MongoURI, cfg.Events.MongoDatabase, cfg.Events.MongoCollection, setupLogger(cfg.Logging))
			if err != nil {
				return err
			}
			defer rec.Close(context.Background())

			reports, err := rec.Recent(ctx, runsLimit)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			for i := range reports {
				if err := enc.Encode(&reports[i]); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().Int64VarP(&runsLimit, "limit", "n", 10, "number of reports")
	return cmd
}
