// Package scheduler drives recurring digest runs from a cron expression.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"PaperDigest/internal/ports"
)

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Options configure the cron driver.
type Options struct {
	// Spec is a five-field cron expression or a descriptor such as "@daily".
	Spec       string
	Location   *time.Location
	RunOnStart bool
}

// CronScheduler fires the job on a cron schedule, skipping a tick while the previous run is active.
type CronScheduler struct {
	opts   Options
	logger *slog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	startup sync.WaitGroup
}

var _ ports.Scheduler = (*CronScheduler)(nil)

// NewCronScheduler builds a scheduler configured via cron expression string.
func NewCronScheduler(opts Options, logger *slog.Logger) *CronScheduler {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CronScheduler{opts: opts, logger: logger}
}

// Validate reports whether spec parses.
func Validate(spec string) error {
	if _, err := parser.Parse(spec); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", spec, err)
	}
	return nil
}

// Start registers the job and begins ticking. It returns once the schedule is running.
func (c *CronScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cron != nil {
		return nil
	}

	schedule, err := parser.Parse(c.opts.Spec)
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", c.opts.Spec, err)
	}

	log := cronLogger{logger: c.logger}
	chain := cron.NewChain(cron.Recover(log), cron.SkipIfStillRunning(log))
	wrapped := chain.Then(cron.FuncJob(func() {
		job(time.Now().In(c.opts.Location))
	}))

	runner := cron.New(
		cron.WithParser(parser),
		cron.WithLocation(c.opts.Location),
		cron.WithLogger(log),
	)
	runner.Schedule(schedule, wrapped)
	runner.Start()
	c.cron = runner

	next := schedule.Next(time.Now().In(c.opts.Location))
	c.logger.Info("scheduler started", "spec", c.opts.Spec, "next_run", next.Format(time.RFC3339))

	if c.opts.RunOnStart {
		c.startup.Add(1)
		go func() {
			defer c.startup.Done()
			wrapped.Run()
		}()
	}

	go func() {
		<-ctx.Done()
		_ = c.Stop(context.Background())
	}()

	return nil
}

// Stop halts the schedule and waits for running jobs, including the
// run-on-start job, until ctx ends.
func (c *CronScheduler) Stop(ctx context.Context) error {
	c.mu.Lock()
	runner := c.cron
	c.cron = nil
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		if runner != nil {
			<-runner.Stop().Done()
		}
		c.startup.Wait()
		close(done)
	}()

	select {
	case <-done:
		if runner != nil {
			c.logger.Info("scheduler stopped")
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for running job: %w", ctx.Err())
	}
}

// cronLogger adapts slog to the cron.Logger interface.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
