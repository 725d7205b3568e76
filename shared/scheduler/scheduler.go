package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is a background maintenance task run on a cron schedule.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// JobFunc adapts a function to the Job interface.
type JobFunc struct {
	JobName string
	Fn      func(ctx context.Context) error
}

func (j JobFunc) Name() string                  { return j.JobName }
func (j JobFunc) Run(ctx context.Context) error { return j.Fn(ctx) }

// Scheduler runs jobs on their schedules until its context is canceled.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
	ctx    context.Context
	jobs   int
}

func New(logger *slog.Logger) *Scheduler {
	cl := cronLogger{logger}
	return &Scheduler{
		logger: logger,
		ctx:    context.Background(),
		// Prevent overlapping runs
		cron: cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
	}
}

// Add registers job under a standard cron spec or descriptor such as
// "@every 30m".
func (s *Scheduler) Add(spec string, job Job) error {
	_, err := s.cron.AddFunc(spec, func() {
		if err := s.RunOnce(s.ctx, job); err != nil {
			s.logger.Error("scheduled job failed", "job", job.Name(), "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to add cron job %s: %w", job.Name(), err)
	}
	s.jobs++
	s.logger.Info("job scheduled", "job", job.Name(), "schedule", spec)
	return nil
}

// Start runs the scheduled jobs and blocks until ctx is canceled. Jobs that are
// still running when it returns have had their context canceled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.ctx = ctx
	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", s.jobs)

	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
	return ctx.Err()
}

// RunOnce runs job immediately, logging its duration.
func (s *Scheduler) RunOnce(ctx context.Context, job Job) error {
	start := time.Now()
	s.logger.Debug("running job", "job", job.Name())

	if err := job.Run(ctx); err != nil {
		return fmt.Errorf("%s run failed: %w", job.Name(), err)
	}

	s.logger.Debug("job completed", "job", job.Name(), "duration", time.Since(start))
	return nil
}

// cronLogger routes cron's own logging to slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
