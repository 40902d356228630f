package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"zephyrm-backend/internal/domain"
	"zephyrm-backend/internal/logger"
	"zephyrm-backend/internal/repository"
)

const eventColumns = `id, title, COALESCE(description, ''), start_at, end_at, user_id, asset_id, created_on, updated_on`

type eventRepository struct {
	db *sql.DB
}

func NewEventRepository(db *sql.DB) repository.EventRepository {
	return &eventRepository{db: db}
}

func scanEvent(s rowScanner) (*domain.Event, error) {
	e := &domain.Event{}
	var assetID sql.NullInt32
	if err := s.Scan(&e.ID, &e.Title, &e.Description, &e.Start, &e.End, &e.UserID, &assetID, &e.CreatedOn, &e.UpdatedOn); err != nil {
		return nil, err
	}
	e.AssetID = int32Ptr(assetID)
	return e, nil
}

func (r *eventRepository) Create(ctx context.Context, e *domain.Event) error {
	query := `INSERT INTO events (title, description, start_at, end_at, user_id, asset_id, created_on, updated_on)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`
	now := time.Now()
	e.CreatedOn, e.UpdatedOn = now, now
	logger.DatabaseCall("INSERT", "events", "userID", e.UserID)
	err := r.db.QueryRowContext(ctx, query, e.Title, e.Description, e.Start, e.End, e.UserID, nullInt32(e.AssetID),
		e.CreatedOn, e.UpdatedOn).Scan(&e.ID)
	logger.DatabaseResult("INSERT", 1, err, "eventID", e.ID)
	if err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

func (r *eventRepository) GetByID(ctx context.Context, id int32) (*domain.Event, error) {
	e, err := scanEvent(r.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "get event", "event", id)
	}
	return e, nil
}

func (r *eventRepository) Update(ctx context.Context, e *domain.Event) error {
	query := `UPDATE events SET title=$1, description=$2, start_at=$3, end_at=$4, asset_id=$5, updated_on=$6 WHERE id=$7`
	e.UpdatedOn = time.Now()
	logger.DatabaseCall("UPDATE", "events", "eventID", e.ID)
	res, err := r.db.ExecContext(ctx, query, e.Title, e.Description, e.Start, e.End, nullInt32(e.AssetID), e.UpdatedOn, e.ID)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	return checkAffected(res, "update event", "event", e.ID)
}

func (r *eventRepository) Delete(ctx context.Context, id int32) error {
	logger.DatabaseCall("DELETE", "events", "eventID", id)
	res, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return checkAffected(res, "delete event", "event", id)
}

func (r *eventRepository) ListByUser(ctx context.Context, userID int32) ([]domain.Event, error) {
	return r.list(ctx, `SELECT `+eventColumns+` FROM events WHERE user_id = $1 ORDER BY start_at`, userID)
}

func (r *eventRepository) List(ctx context.Context) ([]domain.Event, error) {
	return r.list(ctx, `SELECT `+eventColumns+` FROM events ORDER BY start_at`)
}

func (r *eventRepository) list(ctx context.Context, query string, args ...any) ([]domain.Event, error) {
	logger.DatabaseCall("SELECT", "events", "args", args)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		logger.DatabaseResult("SELECT", 0, err)
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("list events: %w", err)
		}
		events = append(events, *e)
	}
	err = rows.Err()
	logger.DatabaseResult("SELECT", int64(len(events)), err)
	return events, err
}
