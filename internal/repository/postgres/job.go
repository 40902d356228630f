package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"zephyrm-backend/internal/domain"
	"zephyrm-backend/internal/logger"
	"zephyrm-backend/internal/repository"
)

const jobColumns = `id, kind, event_id, fire_time, payload, status, COALESCE(last_error, ''), created_on, updated_on`

type jobRepository struct {
	db *sql.DB
}

func NewJobRepository(db *sql.DB) repository.JobRepository {
	return &jobRepository{db: db}
}

func scanJob(s rowScanner) (*domain.ScheduledJob, error) {
	j := &domain.ScheduledJob{}
	var payload []byte
	if err := s.Scan(&j.ID, &j.Kind, &j.EventID, &j.FireTime, &payload, &j.Status, &j.LastError, &j.CreatedOn, &j.UpdatedOn); err != nil {
		return nil, err
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &j.Payload); err != nil {
			return nil, fmt.Errorf("decode job payload: %w", err)
		}
	}
	return j, nil
}

func (r *jobRepository) Create(ctx context.Context, j *domain.ScheduledJob) error {
	payload, err := json.Marshal(j.Payload)
	if err != nil {
		return fmt.Errorf("encode job payload: %w", err)
	}
	query := `INSERT INTO scheduled_jobs (id, kind, event_id, fire_time, payload, status, created_on, updated_on)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	now := time.Now()
	j.CreatedOn, j.UpdatedOn = now, now
	logger.DatabaseCall("INSERT", "scheduled_jobs", "jobID", j.ID, "eventID", j.EventID, "fireTime", j.FireTime)
	_, err = r.db.ExecContext(ctx, query, j.ID, j.Kind, j.EventID, j.FireTime, payload, j.Status, j.CreatedOn, j.UpdatedOn)
	logger.DatabaseResult("INSERT", 1, err, "jobID", j.ID)
	if isUniqueViolation(err) {
		return domain.NewConflict("create job", "job %s already exists", j.ID)
	}
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

func (r *jobRepository) GetByID(ctx context.Context, id string) (*domain.ScheduledJob, error) {
	j, err := scanJob(r.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM scheduled_jobs WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "get job", "job", id)
	}
	return j, nil
}

func (r *jobRepository) Claim(ctx context.Context, id string) error {
	query := `UPDATE scheduled_jobs SET status = $1, updated_on = $2 WHERE id = $3 AND status = $4`
	logger.DatabaseCall("UPDATE", "scheduled_jobs", "jobID", id, "next", domain.JobStatusFired)
	res, err := r.db.ExecContext(ctx, query, domain.JobStatusFired, time.Now(), id, domain.JobStatusScheduled)
	if err != nil {
		logger.DatabaseResult("UPDATE", 0, err, "jobID", id)
		return fmt.Errorf("claim job: %w", err)
	}
	n, err := res.RowsAffected()
	logger.DatabaseResult("UPDATE", n, err, "jobID", id)
	if err != nil {
		return fmt.Errorf("claim job: %w", err)
	}
	if n == 0 {
		return domain.NewConflict("claim job", "job %s is no longer scheduled", id)
	}
	return nil
}

func (r *jobRepository) Annotate(ctx context.Context, id, message string) error {
	logger.DatabaseCall("UPDATE", "scheduled_jobs", "jobID", id, "lastError", message)
	res, err := r.db.ExecContext(ctx, `UPDATE scheduled_jobs SET last_error = $1, updated_on = $2 WHERE id = $3`, message, time.Now(), id)
	if err != nil {
		return fmt.Errorf("annotate job: %w", err)
	}
	return checkAffected(res, "annotate job", "job", id)
}

func (r *jobRepository) CancelByEvent(ctx context.Context, eventID int32) (int64, error) {
	query := `UPDATE scheduled_jobs SET status = $1, updated_on = $2 WHERE event_id = $3 AND status = $4`
	logger.DatabaseCall("UPDATE", "scheduled_jobs", "eventID", eventID, "next", domain.JobStatusCancelled)
	res, err := r.db.ExecContext(ctx, query, domain.JobStatusCancelled, time.Now(), eventID, domain.JobStatusScheduled)
	if err != nil {
		logger.DatabaseResult("UPDATE", 0, err, "eventID", eventID)
		return 0, fmt.Errorf("cancel jobs: %w", err)
	}
	n, err := res.RowsAffected()
	logger.DatabaseResult("UPDATE", n, err, "eventID", eventID)
	return n, err
}

func (r *jobRepository) NextScheduled(ctx context.Context) (*domain.ScheduledJob, error) {
	query := `SELECT ` + jobColumns + ` FROM scheduled_jobs WHERE status = $1 ORDER BY fire_time, id LIMIT 1`
	j, err := scanJob(r.db.QueryRowContext(ctx, query, domain.JobStatusScheduled))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next scheduled job: %w", err)
	}
	return j, nil
}

func (r *jobRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]domain.ScheduledJob, error) {
	query := `SELECT ` + jobColumns + ` FROM scheduled_jobs WHERE status = $1 AND fire_time <= $2 ORDER BY fire_time, id LIMIT $3`
	return r.list(ctx, query, domain.JobStatusScheduled, now, limit)
}

func (r *jobRepository) ListScheduled(ctx context.Context) ([]domain.ScheduledJob, error) {
	query := `SELECT ` + jobColumns + ` FROM scheduled_jobs WHERE status = $1 ORDER BY fire_time, id`
	return r.list(ctx, query, domain.JobStatusScheduled)
}

func (r *jobRepository) PurgeSettled(ctx context.Context, before time.Time) (int64, error) {
	query := `DELETE FROM scheduled_jobs WHERE status <> $1 AND updated_on < $2`
	logger.DatabaseCall("DELETE", "scheduled_jobs", "before", before)
	res, err := r.db.ExecContext(ctx, query, domain.JobStatusScheduled, before)
	if err != nil {
		logger.DatabaseResult("DELETE", 0, err)
		return 0, fmt.Errorf("purge jobs: %w", err)
	}
	n, err := res.RowsAffected()
	logger.DatabaseResult("DELETE", n, err, "before", before)
	return n, err
}

func (r *jobRepository) list(ctx context.Context, query string, args ...any) ([]domain.ScheduledJob, error) {
	logger.DatabaseCall("SELECT", "scheduled_jobs", "args", args)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		logger.DatabaseResult("SELECT", 0, err)
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []domain.ScheduledJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("list jobs: %w", err)
		}
		jobs = append(jobs, *j)
	}
	err = rows.Err()
	logger.DatabaseResult("SELECT", int64(len(jobs)), err)
	return jobs, err
}
