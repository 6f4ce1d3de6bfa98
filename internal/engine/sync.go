package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/IshaanNene/clearancesync/internal/storage"
	"github.com/IshaanNene/clearancesync/internal/types"
)

// SyncEngine writes normalized batches to the store, one transaction per
// batch.
type SyncEngine struct {
	store  storage.Store
	clock  func() time.Time
	logger *slog.Logger
}

// NewSyncEngine creates a SyncEngine over store.
func NewSyncEngine(store storage.Store, logger *slog.Logger) *SyncEngine {
	return &SyncEngine{
		store:  store,
		clock:  time.Now,
		logger: logger.With("component", "sync_engine"),
	}
}

// Sync upserts every product with a URL inside a single transaction.
// Products without a URL are skipped and counted in neither bucket. Any
// failure rolls back the whole batch and is returned as a PersistenceError.
func (e *SyncEngine) Sync(ctx context.Context, batch []types.Product) (types.SyncResult, error) {
	result := types.SyncResult{Total: len(batch)}
	if len(batch) == 0 {
		return result, nil
	}

	now := e.clock().UTC().Truncate(time.Microsecond)

	tx, err := e.store.Begin(ctx)
	if err != nil {
		return types.SyncResult{}, &types.PersistenceError{Op: "begin", Err: err}
	}

	skipped := 0
	for _, p := range batch {
		if p.ProductURL == "" {
			skipped++
			continue
		}

		inserted, err := tx.Upsert(ctx, p, now)
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				e.logger.Error("rollback failed", "error", rbErr)
			}
			return types.SyncResult{}, &types.PersistenceError{Op: "upsert", ProductURL: p.ProductURL, Err: err}
		}
		if inserted {
			result.Saved++
		} else {
			result.Updated++
		}
	}

	if err := tx.Commit(); err != nil {
		return types.SyncResult{}, &types.PersistenceError{Op: "commit", Err: err}
	}

	e.logger.Info("batch synced",
		"saved", result.Saved,
		"updated", result.Updated,
		"skipped", skipped,
		"total", result.Total,
	)
	return result, nil
}
