package observability

import (
	"context"
	"log/slog"

	"github.com/IshaanNene/clearancesync/internal/engine"
)

// LogRecorder writes one structured line per run.
type LogRecorder struct {
	logger *slog.Logger
}

// NewLogRecorder creates a LogRecorder.
func NewLogRecorder(logger *slog.Logger) *LogRecorder {
	return &LogRecorder{logger: logger.With("component", "run_report")}
}

// Record logs the report at INFO, or at ERROR when the run failed.
func (l *LogRecorder) Record(ctx context.Context, r *engine.RunReport) error {
	level := slog.LevelInfo
	if !r.Succeeded() {
		level = slog.LevelError
	}
	l.logger.Log(ctx, level, "run report",
		"run_id", r.RunID,
		"target", r.Target,
		"duration", r.Duration(),
		"attempts", len(r.Attempts),
		slog.Group("scroll",
			"scrolls", r.Scroll.Scrolls,
			"clicks", r.Scroll.Clicks,
			"count", r.Scroll.Count,
			"converged", r.Scroll.Converged,
		),
		slog.Group("extraction",
			"elements", r.Extraction.Elements,
			"listings", r.Extraction.Listings,
			"incomplete", r.Extraction.Incomplete,
			"duplicates", r.Extraction.Duplicates,
			"failed", r.Extraction.Failed,
		),
		slog.Group("result",
			"saved", r.Result.Saved,
			"updated", r.Result.Updated,
			"total", r.Result.Total,
		),
		"snapshot", r.SnapshotPath,
		"error", r.Error,
	)
	return nil
}
