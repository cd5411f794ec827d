package jobs

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	pkgerrors "github.com/angelmondragon/slotbook-backend/pkg/errors"
	"github.com/angelmondragon/slotbook-backend/pkg/logger"
	"github.com/angelmondragon/slotbook-backend/pkg/metrics"
)

// LockFactory returns the lock guarding the named job.
type LockFactory func(name string) (Lock, error)

// RunnerParams configure the runner.
type RunnerParams struct {
	Logger  *logger.Logger
	Locks   LockFactory
	Metrics *metrics.JobMetrics
}

// Runner executes jobs under a per-job lock, timing and logging each run.
type Runner struct {
	logg    *logger.Logger
	locks   LockFactory
	metrics *metrics.JobMetrics
}

// NewRunner builds a job runner.
func NewRunner(params RunnerParams) (*Runner, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Locks == nil {
		return nil, fmt.Errorf("lock factory required")
	}
	return &Runner{logg: params.Logger, locks: params.Locks, metrics: params.Metrics}, nil
}

// Do runs fn as the named job. A run already in progress elsewhere yields a
// CONFLICT error and fn is not called.
func (r *Runner) Do(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	lock, err := r.locks(name)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build job lock")
	}
	locked, err := lock.Acquire(ctx)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire job lock")
	}
	jobCtx := r.logg.WithField(r.logg.WithJob(ctx, name), "event", "job.run")
	if !locked {
		r.metrics.IncSkipped(name)
		r.logg.Warn(jobCtx, "job already running elsewhere; skipping")
		return pkgerrors.New(pkgerrors.CodeConflict, "job already running").
			WithDetails(map[string]any{"job": name})
	}
	defer func() {
		if relErr := lock.Release(ctx); relErr != nil {
			r.logg.Error(jobCtx, "failed to release job lock", relErr)
		}
	}()

	r.logg.Info(jobCtx, "job start")
	start := time.Now()
	err = fn(jobCtx)
	duration := time.Since(start)
	r.metrics.ObserveDuration(name, duration)
	jobCtx = r.logg.WithField(jobCtx, "duration_ms", duration.Milliseconds())
	if err != nil {
		r.logg.Error(jobCtx, "job failed", err)
		r.metrics.IncFailure(name)
		return err
	}
	r.logg.Info(jobCtx, "job completed")
	r.metrics.IncSuccess(name)
	return nil
}

// Run executes a single job.
func (r *Runner) Run(ctx context.Context, job Job) error {
	return r.Do(ctx, job.Name(), job.Run)
}

// RunAll executes every registered job once and combines their errors.
func (r *Runner) RunAll(ctx context.Context, registry *Registry) error {
	var errs error
	for _, job := range registry.Jobs() {
		if err := r.Run(ctx, job); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", job.Name(), err))
		}
	}
	return errs
}
