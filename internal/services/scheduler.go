package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fastygo/planner/usecase/jobs"
)

// JobRunner executes named dispatcher commands.
type JobRunner interface {
	ExecuteCommand(ctx context.Context, name string, payload interface{}) (interface{}, error)
}

type SchedulerConfig struct {
	// MaterializeSpec runs a sweep followed by a materialization.
	MaterializeSpec string
	// SweepSpec runs a sweep on its own, so users whose midnight falls
	// between materializations still get their missed updates promptly.
	SweepSpec  string
	JobTimeout time.Duration
}

// Scheduler triggers the all-users jobs on cron specs (with seconds).
type Scheduler struct {
	runner JobRunner
	cron   *cron.Cron
	cfg    SchedulerConfig
	logger *zap.Logger

	mu      sync.Mutex
	running context.CancelFunc
}

func NewScheduler(runner JobRunner, cfg SchedulerConfig, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 10 * time.Minute
	}

	cronLogger := zapCronLogger{logger.Sugar()}
	s := &Scheduler{
		runner: runner,
		cfg:    cfg,
		logger: logger,
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
	}

	if cfg.MaterializeSpec != "" {
		if _, err := s.cron.AddFunc(cfg.MaterializeSpec, func() { s.tick(s.RunOnce) }); err != nil {
			return nil, fmt.Errorf("materialize spec %q: %w", cfg.MaterializeSpec, err)
		}
	}
	if cfg.SweepSpec != "" {
		if _, err := s.cron.AddFunc(cfg.SweepSpec, func() { s.tick(s.sweep) }); err != nil {
			return nil, fmt.Errorf("sweep spec %q: %w", cfg.SweepSpec, err)
		}
	}
	return s, nil
}

// Start launches the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started",
		zap.String("materialize_spec", s.cfg.MaterializeSpec),
		zap.String("sweep_spec", s.cfg.SweepSpec))
}

// Stop cancels a running job and waits for it to return or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	s.mu.Lock()
	if s.running != nil {
		s.running()
	}
	s.mu.Unlock()

	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	s.logger.Info("scheduler stopped")
}

// RunOnce marks missed updates first, then materializes the horizon.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if err := s.sweep(ctx); err != nil {
		return err
	}
	_, err := s.runner.ExecuteCommand(ctx, jobs.MaterializeAll, nil)
	return err
}

func (s *Scheduler) sweep(ctx context.Context) error {
	_, err := s.runner.ExecuteCommand(ctx, jobs.SweepAll, nil)
	return err
}

func (s *Scheduler) tick(job func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.JobTimeout)
	s.mu.Lock()
	s.running = cancel
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = nil
		s.mu.Unlock()
		cancel()
	}()

	if err := job(ctx); err != nil {
		s.logger.Error("scheduled job failed", zap.Error(err))
	}
}

// zapCronLogger adapts zap to cron.Logger.
type zapCronLogger struct {
	log *zap.SugaredLogger
}

func (l zapCronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l zapCronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
