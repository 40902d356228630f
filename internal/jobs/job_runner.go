package jobs

import (
	"context"
	"time"

	"zephyrm-backend/internal/config"
	"zephyrm-backend/internal/logger"
	"zephyrm-backend/internal/metrics"
	"zephyrm-backend/internal/repository"
)

// Waker nudges the reminder loop to re-read the job table.
type Waker interface {
	Wake()
}

// Repositories holds the store dependencies needed by jobs
type Repositories struct {
	Jobs          repository.JobRepository
	Assets        repository.AssetRepository
	Notifications repository.NotificationRepository
}

// JobRunner coordinates all maintenance jobs
type JobRunner struct {
	repos   Repositories
	waker   Waker
	config  *config.Config
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewJobRunner creates a new job runner. waker may be nil when the runner
// lives in a process without a reminder loop.
func NewJobRunner(repos Repositories, waker Waker, cfg *config.Config, m *metrics.Metrics) *JobRunner {
	return &JobRunner{
		repos:   repos,
		waker:   waker,
		config:  cfg,
		metrics: m,
		now:     time.Now,
	}
}

// Config returns the configuration the runner was built with
func (jr *JobRunner) Config() *config.Config {
	return jr.config
}

// runWithRecovery wraps job execution with panic recovery
func (jr *JobRunner) runWithRecovery(jobName string, jobFunc func(ctx context.Context) error) {
	status := "ok"
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Job panicked", "job", jobName, "panic", r)
			status = "panic"
		}
		jr.metrics.MaintenanceRun(jobName, status)
	}()

	logger.Info("Starting job", "job", jobName)
	if err := jobFunc(context.Background()); err != nil {
		status = "error"
		logger.Error("Job failed", "job", jobName, "error", err)
		return
	}
	logger.Info("Job completed", "job", jobName)
}

// RunAll runs every maintenance job once (for manual execution)
func (jr *JobRunner) RunAll() {
	jr.PurgeSettledJobs()
	jr.AuditAssetConsistency()
	jr.PurgeReadNotifications()
	jr.SweepReminders()
}
