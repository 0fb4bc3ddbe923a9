package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/eternisai/maintenance-tracker/internal/logger"
)

// Refresher is anything that can reload itself from the backend.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Target is a named Refresher driven by the scheduler.
type Target struct {
	Name      string
	Refresher Refresher
}

// Scheduler refreshes a set of targets on a cron schedule.
type Scheduler struct {
	cron     *cron.Cron
	schedule string
	targets  []Target
	timeout  time.Duration
	logger   *logger.Logger

	mu  sync.Mutex
	ctx context.Context
}

// New parses schedule ("@every 30s", "*/5 * * * *", ...) and registers a job
// refreshing every target. Each run is bounded by timeout when it is > 0.
func New(schedule string, timeout time.Duration, log *logger.Logger, targets ...Target) (*Scheduler, error) {
	if schedule == "" {
		return nil, errors.New("refresh schedule is empty")
	}

	s := &Scheduler{
		schedule: schedule,
		targets:  targets,
		timeout:  timeout,
		logger:   log.WithComponent("refresh_scheduler"),
		ctx:      context.Background(),
	}
	s.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	if _, err := s.cron.AddFunc(schedule, s.tick); err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start begins the schedule. ctx bounds every scheduled run.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	s.logger.Info("starting refresh scheduler",
		slog.String("schedule", s.schedule),
		slog.Int("targets", len(s.targets)))
	s.cron.Start()
}

// Stop halts the schedule and waits for a running refresh to finish, or for
// ctx to end.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.logger.Info("stopping refresh scheduler")
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce refreshes every target concurrently and returns the joined errors.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	ctx = logger.WithOperation(ctx, "scheduled_refresh")

	// Every target runs to completion; one failure does not cancel the others.
	errs := make([]error, len(s.targets))
	var wg sync.WaitGroup
	for i, target := range s.targets {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			if err := target.Refresher.Refresh(ctx); err != nil {
				errs[i] = fmt.Errorf("refresh %s: %w", target.Name, err)
				s.logger.WithContext(ctx).Warn("scheduled refresh failed",
					slog.String("target", target.Name),
					slog.String("error", err.Error()))
				return
			}
			s.logger.WithContext(ctx).Debug("scheduled refresh done",
				slog.String("target", target.Name),
				slog.Duration("duration", time.Since(start)))
		}()
	}
	wg.Wait()

	return errors.Join(errs...)
}

func (s *Scheduler) tick() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	if ctx.Err() != nil {
		return
	}
	_ = s.RunOnce(ctx)
}
