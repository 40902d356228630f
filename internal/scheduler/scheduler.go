package scheduler

import (
	"time"

	"github.com/robfig/cron/v3"

	"zephyrm-backend/internal/jobs"
	"zephyrm-backend/internal/logger"
)

// Scheduler manages cron scheduling of maintenance jobs. Reminders do not
// go through cron; they are fired by ReminderScheduler.
type Scheduler struct {
	cron *cron.Cron
	jobs *jobs.JobRunner
}

// NewScheduler creates a new scheduler with the provided job runner
func NewScheduler(jobRunner *jobs.JobRunner) *Scheduler {
	// Create cron with UTC timezone and seconds precision
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithSeconds(),
	)

	s := &Scheduler{
		cron: c,
		jobs: jobRunner,
	}

	s.registerJobs()
	return s
}

// registerJobs registers all scheduled jobs with the cron scheduler
func (s *Scheduler) registerJobs() {
	cfg := s.jobs.Config().Scheduler

	entries := []struct {
		name string
		spec string
		run  func()
	}{
		{"PurgeSettledJobs", cfg.PurgeSettledJobs, s.jobs.PurgeSettledJobs},
		{"AuditAssetConsistency", cfg.AuditAssets, s.jobs.AuditAssetConsistency},
		{"SweepReminders", cfg.SweepReminders, s.jobs.SweepReminders},
		{"PurgeReadNotifications", cfg.PurgeReadNotifications, s.jobs.PurgeReadNotifications},
	}
	for _, e := range entries {
		if _, err := s.cron.AddFunc(e.spec, e.run); err != nil {
			logger.Error("Failed to register job", "job", e.name, "spec", e.spec, "error", err)
		}
	}

	logger.Info("Cron jobs registered", "count", len(s.cron.Entries()))
}

// Start begins the cron scheduler
func (s *Scheduler) Start() {
	logger.Info("Starting cron scheduler...")
	s.cron.Start()
	logger.Info("Cron scheduler started successfully")
}

// Stop gracefully stops the cron scheduler
func (s *Scheduler) Stop() {
	logger.Info("Stopping cron scheduler...")
	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Info("Cron scheduler stopped")
}

// IsRunning returns true if the scheduler has jobs registered
func (s *Scheduler) IsRunning() bool {
	return len(s.cron.Entries()) > 0
}
