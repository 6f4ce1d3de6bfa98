package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/IshaanNene/clearancesync/internal/config"
	"github.com/IshaanNene/clearancesync/internal/fetcher"
	"github.com/IshaanNene/clearancesync/internal/parser"
	"github.com/IshaanNene/clearancesync/internal/pipeline"
	"github.com/IshaanNene/clearancesync/internal/storage"
	"github.com/IshaanNene/clearancesync/internal/types"
)

// ErrRunInProgress is returned when RunSync is called while a run is active.
var ErrRunInProgress = types.ErrRunInProgress

// State represents the runner's lifecycle state.
type State int32

const (
	StateIdle    State = 0
	StateRunning State = 1
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	default:
		return "unknown"
	}
}

// Runner composes browsing, extraction, normalization and persistence into
// a single retried operation.
type Runner struct {
	target     string
	sessionCfg fetcher.SessionConfig
	launcher   fetcher.Launcher
	extractor  *parser.Extractor
	normalizer *pipeline.Normalizer
	sync       *SyncEngine
	retrier    *Retrier
	archive    *fetcher.SnapshotArchive
	recorders  []Recorder
	logger     *slog.Logger

	state atomic.Int32
	clock func() time.Time
	newID func() string
}

// Option customizes a Runner.
type Option func(*Runner)

// WithRecorders adds sinks for run reports.
func WithRecorders(recs ...Recorder) Option {
	return func(r *Runner) { r.recorders = append(r.recorders, recs...) }
}

// WithSnapshotArchive keeps a compressed copy of every harvested page.
func WithSnapshotArchive(a *fetcher.SnapshotArchive) Option {
	return func(r *Runner) { r.archive = a }
}

// NewRunner wires a Runner from configuration.
func NewRunner(cfg *config.Config, launcher fetcher.Launcher, store storage.Store, logger *slog.Logger, opts ...Option) (*Runner, error) {
	origin := cfg.Target.Origin
	if origin == "" {
		o, err := types.Origin(cfg.Target.URL)
		if err != nil {
			return nil, fmt.Errorf("derive origin: %w", err)
		}
		origin = o
	}

	r := &Runner{
		target:     cfg.Target.URL,
		sessionCfg: fetcher.NewSessionConfig(cfg),
		launcher:   launcher,
		extractor:  parser.NewExtractor(cfg.Target.ProductSelector, origin, parser.RulesFromConfig(cfg.Extract.Fields), logger),
		normalizer: pipeline.NewNormalizer(origin, logger),
		sync:       NewSyncEngine(store, logger),
		retrier:    NewRetrier(cfg.Retry.MaxAttempts, cfg.Retry.Backoff, logger),
		logger:     logger.With("component", "runner"),
		clock:      time.Now,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// State returns the current lifecycle state.
func (r *Runner) State() State {
	return State(r.state.Load())
}

// RunSync harvests the listing page and synchronizes it into the store.
// A page with no products is a successful run with a zero result. When all
// attempts fail, the last attempt's error is returned unchanged.
func (r *Runner) RunSync(ctx context.Context) (types.SyncResult, error) {
	result, _, err := r.Run(ctx)
	return result, err
}

// Run is RunSync that also returns the run report.
func (r *Runner) Run(ctx context.Context) (types.SyncResult, *RunReport, error) {
	if !r.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return types.SyncResult{}, nil, ErrRunInProgress
	}
	defer r.state.Store(int32(StateIdle))

	report := &RunReport{
		RunID:     r.newID(),
		Target:    r.target,
		StartedAt: r.clock(),
	}
	logger := r.logger.With("run_id", report.RunID)
	logger.Info("sync run started", "target", r.target)

	var result types.SyncResult
	err := r.retrier.Do(ctx, func(ctx context.Context, n int) error {
		started := r.clock()
		res, err := r.attempt(ctx, logger, report)

		ar := AttemptReport{Attempt: n, Duration: r.clock().Sub(started)}
		if err != nil {
			ar.Error = err.Error()
		} else {
			result = res
		}
		report.Attempts = append(report.Attempts, ar)
		return err
	})

	report.FinishedAt = r.clock()
	if err != nil {
		report.Error = err.Error()
	} else {
		report.Result = result
	}

	if err != nil {
		logger.Error("sync run failed", "attempts", len(report.Attempts), "duration", report.Duration(), "error", err)
	} else {
		logger.Info("sync run finished",
			"saved", result.Saved,
			"updated", result.Updated,
			"total", result.Total,
			"attempts", len(report.Attempts),
			"duration", report.Duration(),
		)
	}

	r.publish(ctx, logger, report)
	return result, report, err
}

// attempt is one pass: browse, extract, normalize, sync.
func (r *Runner) attempt(ctx context.Context, logger *slog.Logger, report *RunReport) (types.SyncResult, error) {
	html, err := r.harvest(ctx, report)
	if err != nil {
		return types.SyncResult{}, err
	}

	if r.archive != nil {
		path, err := r.archive.Save(report.RunID, r.clock(), html)
		if err != nil {
			logger.Warn("snapshot not archived", "error", err)
		} else {
			report.SnapshotPath = path
		}
	}

	extraction, err := r.extractor.Extract(html)
	if err != nil {
		return types.SyncResult{}, err
	}
	report.Extraction = ExtractionSummary{
		Elements:   extraction.Elements,
		Listings:   len(extraction.Listings),
		Incomplete: extraction.Incomplete,
		Duplicates: extraction.Duplicates,
		Failed:     extraction.Failed,
	}

	products, stats := r.normalizer.Normalize(extraction.Listings)
	report.Normalize = stats
	if len(products) == 0 {
		logger.Warn("no products found on page")
		return types.SyncResult{}, nil
	}

	return r.sync.Sync(ctx, products)
}

// harvest returns the rendered page once scrolling has converged. The
// browser is released before anything is written to the store.
func (r *Runner) harvest(ctx context.Context, report *RunReport) (string, error) {
	session, err := fetcher.Open(ctx, r.launcher, r.sessionCfg, r.logger)
	if err != nil {
		return "", fmt.Errorf("open browser: %w", err)
	}
	defer session.Close()

	if err := session.Navigate(ctx, r.target); err != nil {
		return "", err
	}
	session.AwaitFirstContent(ctx)

	stats, err := session.ScrollConverge(ctx)
	report.Scroll = stats
	if err != nil {
		return "", err
	}

	return session.Snapshot(ctx)
}

func (r *Runner) publish(ctx context.Context, logger *slog.Logger, report *RunReport) {
	for _, rec := range r.recorders {
		if err := rec.Record(ctx, report); err != nil {
			logger.Warn("run report not recorded", "recorder", fmt.Sprintf("%T", rec), "error", err)
		}
	}
}
