// Package scheduler triggers sync runs on a cron spec.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/IshaanNene/clearancesync/internal/types"
)

// Job is the operation the scheduler triggers.
type Job interface {
	RunSync(ctx context.Context) (types.SyncResult, error)
}

// Locker provides exclusivity across processes. Acquire reports false when
// another holder has the lock.
type Locker interface {
	Acquire(ctx context.Context, token string) (bool, error)
	Release(ctx context.Context, token string) error
}

// Scheduler wraps robfig/cron and runs the job on every tick.
type Scheduler struct {
	cron       *cron.Cron
	spec       string
	runOnStart bool
	job        Job
	locker     Locker
	logger     *slog.Logger

	wg sync.WaitGroup
}

// New creates a Scheduler. locker may be nil.
func New(spec string, runOnStart bool, job Job, locker Locker, logger *slog.Logger) *Scheduler {
	logger = logger.With("component", "scheduler")
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))

	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		spec:       spec,
		runOnStart: runOnStart,
		job:        job,
		locker:     locker,
		logger:     logger,
	}
}

// Start registers the job and starts the cron loop. With runOnStart one run
// is also started immediately instead of waiting for the first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		s.RunOnce(ctx)
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc(%q): %w", s.spec, err)
	}

	s.cron.Start()
	s.logger.Info("cron started", "spec", s.spec)

	if s.runOnStart {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.RunOnce(ctx)
		}()
	}
	return nil
}

// Stop stops the cron loop and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.logger.Info("cron stopped")
}

// RunOnce runs the job under the lock, if one is configured. It returns
// ErrLockHeld when another run holds the lock.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if s.locker != nil {
		token := uuid.NewString()
		ok, err := s.locker.Acquire(ctx, token)
		if err != nil {
			s.logger.Error("lock acquire failed", "error", err)
			return err
		}
		if !ok {
			s.logger.Warn("skipping run, lock held elsewhere")
			return types.ErrLockHeld
		}
		defer func() {
			if err := s.locker.Release(context.WithoutCancel(ctx), token); err != nil {
				s.logger.Warn("lock release failed", "error", err)
			}
		}()
	}

	res, err := s.job.RunSync(ctx)
	if err != nil {
		switch {
		case errors.Is(err, types.ErrRunInProgress):
			s.logger.Info("skipping run, previous run still active")
		case errors.Is(err, context.Canceled):
		default:
			s.logger.Error("scheduled run failed", "error", err)
		}
		return err
	}
	s.logger.Info("scheduled run complete", "saved", res.Saved, "updated", res.Updated, "total", res.Total)
	return nil
}
