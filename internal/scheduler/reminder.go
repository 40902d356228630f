package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"zephyrm-backend/internal/domain"
	"zephyrm-backend/internal/logger"
	"zephyrm-backend/internal/metrics"
	"zephyrm-backend/internal/repository"
	"zephyrm-backend/internal/service"
)

const (
	defaultBatchSize = 100
	// maxIdle bounds how long the loop sleeps with nothing scheduled, so jobs
	// written by another instance are picked up even without a wake signal.
	maxIdle    = 5 * time.Minute
	retryDelay = 5 * time.Second
)

// ReminderOptions configures a ReminderScheduler. Zero values pick defaults.
type ReminderOptions struct {
	Lead      time.Duration
	Now       func() time.Time
	BatchSize int
	Metrics   *metrics.Metrics
}

// ReminderScheduler turns Event start times into durable send-reminder jobs
// and fires them from a single loop. The only in-process state is the next
// wake time, re-derived from the job table at any point.
type ReminderScheduler struct {
	jobs   repository.JobRepository
	events repository.EventRepository
	notes  service.NotificationService

	lead      time.Duration
	now       func() time.Time
	batchSize int
	metrics   *metrics.Metrics

	// fireMu makes firing and cancelling mutually exclusive: a cancel
	// waits for an in-flight fire, and a fire re-checks status after a
	// cancel.
	fireMu sync.Mutex
	wake   chan struct{}

	mu       sync.Mutex
	nextWake time.Time
}

func NewReminderScheduler(
	jobs repository.JobRepository,
	events repository.EventRepository,
	notes service.NotificationService,
	opts ReminderOptions,
) *ReminderScheduler {
	if opts.Lead <= 0 {
		opts.Lead = 30 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	return &ReminderScheduler{
		jobs:      jobs,
		events:    events,
		notes:     notes,
		lead:      opts.Lead,
		now:       opts.Now,
		batchSize: opts.BatchSize,
		metrics:   opts.Metrics,
		wake:      make(chan struct{}, 1),
	}
}

// Schedule replaces any outstanding reminder for e with one firing at
// e.Start minus the lead, unless that moment has already passed.
func (s *ReminderScheduler) Schedule(ctx context.Context, e *domain.Event) error {
	logger.EnterMethod("ReminderScheduler.Schedule", "eventID", e.ID, "start", e.Start)

	job, err := s.replace(ctx, e)
	if err != nil {
		logger.ExitMethodWithError("ReminderScheduler.Schedule", err, "eventID", e.ID)
		return err
	}
	if job == nil {
		logger.ExitMethod("ReminderScheduler.Schedule", "eventID", e.ID, "scheduled", false)
		return nil
	}

	ack := &domain.Notification{
		UserID:      e.UserID,
		Type:        domain.NotificationTypeReminderScheduled,
		Title:       "Reminder Scheduled",
		Description: fmt.Sprintf("You will be reminded about %q at %s", e.Title, job.FireTime.UTC().Format(time.RFC1123)),
		EventID:     &e.ID,
		AssetID:     e.AssetID,
		EventDate:   e.Start,
	}
	if err := s.notes.Notify(ctx, ack); err != nil {
		logger.Warn("Failed to acknowledge reminder", "eventID", e.ID, "error", err)
	}

	logger.ExitMethod("ReminderScheduler.Schedule", "eventID", e.ID, "jobID", job.ID, "fireTime", job.FireTime)
	return nil
}

func (s *ReminderScheduler) replace(ctx context.Context, e *domain.Event) (*domain.ScheduledJob, error) {
	s.fireMu.Lock()
	defer s.fireMu.Unlock()

	cancelled, err := s.jobs.CancelByEvent(ctx, e.ID)
	if err != nil {
		return nil, err
	}
	if cancelled > 0 {
		logger.Info("Cancelled superseded reminders", "eventID", e.ID, "count", cancelled)
		s.Wake()
	}

	fire, ok := domain.ReminderFireTime(e.Start, s.now(), s.lead)
	if !ok {
		logger.Debug("Event starts too soon for a reminder", "eventID", e.ID, "start", e.Start)
		return nil, nil
	}

	job := &domain.ScheduledJob{
		ID:       uuid.NewString(),
		Kind:     domain.JobKindSendReminder,
		EventID:  e.ID,
		FireTime: fire,
		Payload: domain.ReminderPayload{
			UserID:      e.UserID,
			EventID:     e.ID,
			Title:       e.Title,
			Description: e.Description,
		},
		Status: domain.JobStatusScheduled,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, err
	}
	s.metrics.ReminderScheduled()
	s.Wake()
	return job, nil
}

// Cancel marks every outstanding reminder of the event cancelled. It waits
// for a fire already in progress.
func (s *ReminderScheduler) Cancel(ctx context.Context, eventID int32) error {
	s.fireMu.Lock()
	defer s.fireMu.Unlock()

	n, err := s.jobs.CancelByEvent(ctx, eventID)
	if err != nil {
		return err
	}
	if n > 0 {
		logger.Info("Cancelled reminders", "eventID", eventID, "count", n)
		s.Wake()
	}
	return nil
}

// Wake asks the loop to recompute its next fire time.
func (s *ReminderScheduler) Wake() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// NextWake returns the fire time the loop is waiting for, or the zero time
// when nothing is scheduled.
func (s *ReminderScheduler) NextWake() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextWake
}

func (s *ReminderScheduler) setNextWake(t time.Time) {
	s.mu.Lock()
	s.nextWake = t
	s.mu.Unlock()
}

// Recover reports the jobs left over from a previous process. Future ones
// are simply waited for; elapsed ones fire on the loop's first pass.
func (s *ReminderScheduler) Recover(ctx context.Context) (pending, elapsed int, err error) {
	jobs, err := s.jobs.ListScheduled(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("recover reminders: %w", err)
	}
	now := s.now()
	for _, j := range jobs {
		if j.FireTime.After(now) {
			pending++
		} else {
			elapsed++
		}
	}
	s.metrics.RemindersPending(len(jobs))
	logger.Info("Recovered reminder jobs", "pending", pending, "elapsed", elapsed)
	s.Wake()
	return pending, elapsed, nil
}

// Run is the scheduling loop. It returns when ctx is done.
func (s *ReminderScheduler) Run(ctx context.Context) error {
	log := logger.WithComponent("reminder-scheduler")
	if _, _, err := s.Recover(ctx); err != nil {
		log.Error("Recovery failed", "error", err)
	}
	log.Info("Reminder loop started", "lead", s.lead)

	for {
		wait := s.processDue(ctx)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Info("Reminder loop stopped")
			return nil
		case <-s.wake:
		case <-timer.C:
		}
		timer.Stop()
	}
}

// processDue fires every job whose time has come and returns how long to
// sleep until the next one.
func (s *ReminderScheduler) processDue(ctx context.Context) time.Duration {
	for {
		if ctx.Err() != nil {
			return 0
		}
		due, err := s.jobs.ListDue(ctx, s.now(), s.batchSize)
		if err != nil {
			logger.Error("Failed to list due reminders", "error", err)
			return retryDelay
		}
		failed := false
		for i := range due {
			if err := s.fire(ctx, &due[i]); err != nil {
				failed = true
			}
		}
		// Unclaimed jobs stay due; back off instead of listing them again.
		if failed {
			return retryDelay
		}
		if len(due) < s.batchSize {
			break
		}
	}

	next, err := s.jobs.NextScheduled(ctx)
	if err != nil {
		logger.Error("Failed to load next reminder", "error", err)
		return retryDelay
	}
	if next == nil {
		s.setNextWake(time.Time{})
		return maxIdle
	}
	s.setNextWake(next.FireTime)
	wait := next.FireTime.Sub(s.now())
	if wait < 0 {
		wait = 0
	}
	if wait > maxIdle {
		wait = maxIdle
	}
	return wait
}

// fire sends one reminder. It returns an error only when the job could not be
// claimed because of a store failure, leaving it SCHEDULED.
func (s *ReminderScheduler) fire(ctx context.Context, job *domain.ScheduledJob) error {
	s.fireMu.Lock()
	defer s.fireMu.Unlock()

	// Claim is the status re-check: a job cancelled since ListDue fails here.
	if err := s.jobs.Claim(ctx, job.ID); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			logger.Debug("Reminder no longer scheduled, skipping", "jobID", job.ID)
			s.metrics.ReminderFired("skipped")
			return nil
		}
		logger.Error("Failed to claim reminder", "jobID", job.ID, "error", err)
		s.metrics.ReminderFired("error")
		return err
	}

	event, err := s.events.GetByID(ctx, job.EventID)
	if err != nil {
		stale := domain.NewStaleJob("fire reminder", job.ID, err)
		logger.Warn("Dropping reminder for missing event", "jobID", job.ID, "eventID", job.EventID, "error", stale)
		s.annotate(ctx, job.ID, stale.Error())
		s.metrics.ReminderFired("stale")
		return nil
	}

	n := &domain.Notification{
		UserID:      event.UserID,
		Type:        domain.NotificationTypeEventReminder,
		Title:       "Event Reminder",
		Description: fmt.Sprintf("%q starts at %s", event.Title, event.Start.UTC().Format(time.RFC1123)),
		EventID:     &event.ID,
		AssetID:     event.AssetID,
		EventDate:   event.Start,
	}
	if err := s.notes.Notify(ctx, n); err != nil {
		logger.Error("Failed to create reminder notification", "jobID", job.ID, "error", err)
		s.annotate(ctx, job.ID, err.Error())
		s.metrics.ReminderFired("error")
		return nil
	}

	s.metrics.ReminderFired("sent")
	logger.Info("Reminder fired", "jobID", job.ID, "eventID", event.ID, "userID", event.UserID)
	return nil
}

func (s *ReminderScheduler) annotate(ctx context.Context, jobID, msg string) {
	if err := s.jobs.Annotate(ctx, jobID, msg); err != nil {
		logger.Error("Failed to annotate reminder", "jobID", jobID, "error", err)
	}
}
