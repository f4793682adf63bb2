package usecase

import (
	"context"
	"time"

	"PaperDigest/internal/ports"
)

// Scheduler wires the cron-like driver with the orchestrator.
type Scheduler struct {
	driver       ports.Scheduler
	orchestrator *Orchestrator
}

// NewScheduler returns a helper to start/stop recurring runs.
func NewScheduler(driver ports.Scheduler, orchestrator *Orchestrator) *Scheduler {
	return &Scheduler{driver: driver, orchestrator: orchestrator}
}

// Start registers the orchestrator run with the provided scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.orchestrator == nil {
		return nil
	}

	job := func(trigger time.Time) {
		s.orchestrator.logger.Info("scheduled run triggered", "at", trigger.Format(time.RFC3339))
		_ = s.orchestrator.Run(ctx)
	}

	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
