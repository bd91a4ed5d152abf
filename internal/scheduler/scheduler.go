// Package scheduler triggers ingest runs on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/JakeFAU/ajou-notice-sync/internal/ingest"
)

// Defaults applied when Config leaves a field empty.
const (
	DefaultSpec       = "*/30 * * * *"
	DefaultTimezone   = "Asia/Seoul"
	DefaultRunTimeout = 10 * time.Minute
)

// Runner performs one sync.
type Runner interface {
	Run(ctx context.Context) (ingest.Report, error)
}

// Config controls the schedule.
type Config struct {
	Spec       string
	Timezone   string
	RunTimeout time.Duration
}

// Scheduler runs the ingest runner on a cron schedule. Overlapping ticks are
// skipped while a run is still in progress.
type Scheduler struct {
	cron       *cron.Cron
	runner     Runner
	runTimeout time.Duration
	location   *time.Location
	spec       string
	logger     *zap.Logger
}

// New validates cfg and registers the sync job. Call Start to begin ticking.
func New(cfg Config, runner Runner, logger *zap.Logger) (*Scheduler, error) {
	if runner == nil {
		return nil, fmt.Errorf("runner is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Spec == "" {
		cfg.Spec = DefaultSpec
	}
	if cfg.Timezone == "" {
		cfg.Timezone = DefaultTimezone
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = DefaultRunTimeout
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("scheduler.timezone %q: %w", cfg.Timezone, err)
	}

	cronLogger := zapCronLogger{logger: logger.Sugar()}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		runner:     runner,
		runTimeout: cfg.RunTimeout,
		location:   loc,
		spec:       cfg.Spec,
		logger:     logger,
	}
	if _, err := s.cron.AddFunc(cfg.Spec, s.tick); err != nil {
		return nil, fmt.Errorf("scheduler.spec %q: %w", cfg.Spec, err)
	}
	return s, nil
}

// Start begins the cron loop in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started",
		zap.String("spec", s.spec),
		zap.String("timezone", s.location.String()),
	)
}

// Stop halts new ticks and waits for a running sync to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next returns the next scheduled tick after now.
func (s *Scheduler) Next(now time.Time) time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Schedule.Next(now.In(s.location))
}

func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), s.runTimeout)
	defer cancel()
	report, err := s.runner.Run(ctx)
	if err != nil {
		s.logger.Error("scheduled sync failed", zap.Error(err))
		return
	}
	s.logger.Info("scheduled sync complete",
		zap.String("run_id", report.RunID),
		zap.Int("inserted", report.Inserted),
	)
}

type zapCronLogger struct {
	logger *zap.SugaredLogger
}

func (l zapCronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l zapCronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}
