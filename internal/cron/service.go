package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/harvestdesk/farmops-backend/pkg/logger"
	"github.com/harvestdesk/farmops-backend/pkg/metrics"
)

const (
	defaultInterval = 24 * time.Hour
	releaseTimeout  = 5 * time.Second
)

type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.CronJobMetrics
	Interval time.Duration
}

// Service runs the registered jobs once per interval. A cycle only starts
// while this instance holds the lock.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	lock     Lock
	metrics  *metrics.CronJobMetrics
	interval time.Duration
}

func NewService(p ServiceParams) (*Service, error) {
	if p.Logger == nil {
		return nil, errors.New("cron: logger is required")
	}
	s := &Service{
		logg:     p.Logger,
		registry: p.Registry,
		lock:     p.Lock,
		metrics:  p.Metrics,
		interval: p.Interval,
	}
	if s.registry == nil {
		s.registry = &Registry{byKey: map[string]Job{}}
	}
	if s.lock == nil {
		s.lock = &LocalLock{}
	}
	if s.interval <= 0 {
		s.interval = defaultInterval
	}
	return s, nil
}

// Run starts a cycle right away and then one per interval, measured from the
// start of the previous cycle, until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			s.logg.Info(ctx, "cron loop stopped")
			return err
		}
		started := time.Now()
		if err := s.RunOnce(ctx); err != nil {
			s.logg.Error(ctx, "cron cycle finished with errors", err)
		}

		wait := time.NewTimer(s.interval - time.Since(started))
		select {
		case <-ctx.Done():
			wait.Stop()
		case <-wait.C:
		}
	}
}

// RunOnce runs the named jobs (all when none are named) one after another.
// A failing job does not stop the rest; the returned error combines every
// failure. When another instance holds the lock the cycle is skipped and nil
// is returned.
func (s *Service) RunOnce(ctx context.Context, names ...string) error {
	jobs, err := s.registry.Select(names...)
	if err != nil {
		return err
	}

	held, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("cron: acquire lock: %w", err)
	}
	if !held {
		s.logg.Info(ctx, "cron lock held elsewhere, skipping cycle")
		return nil
	}
	defer s.release(ctx)

	var errs error
	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			return multierr.Append(errs, err)
		}
		errs = multierr.Append(errs, s.runJob(ctx, job))
	}
	return errs
}

// release uses its own deadline so a cancelled cycle still hands the lock back.
func (s *Service) release(ctx context.Context) {
	relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()
	if err := s.lock.Release(relCtx); err != nil {
		s.logg.Error(ctx, "cron lock release failed", err)
	}
}

func (s *Service) runJob(ctx context.Context, job Job) (err error) {
	name := job.Name()
	ctx = s.logg.WithFields(ctx, map[string]any{"job": name, "event": "cron.job"})
	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
		elapsed := time.Since(start)
		s.metrics.JobFinished(name, elapsed, err)
		ctx = s.logg.WithField(ctx, "duration_ms", elapsed.Milliseconds())
		if err != nil {
			s.logg.Error(ctx, "job failed", err)
			err = fmt.Errorf("%s: %w", name, err)
			return
		}
		s.logg.Info(ctx, "job done")
	}()

	return job.Run(ctx)
}
