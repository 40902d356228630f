package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"zephyrm-backend/internal/domain"
	"zephyrm-backend/internal/logger"
	"zephyrm-backend/internal/repository"
)

const requestColumns = `id, title, motivation, user_id, asset_id, status, COALESCE(motive, ''), created_on, decided_on`

type requestRepository struct {
	db *sql.DB
}

func NewRequestRepository(db *sql.DB) repository.RequestRepository {
	return &requestRepository{db: db}
}

func scanRequest(s rowScanner) (*domain.Request, error) {
	req := &domain.Request{}
	var decided sql.NullTime
	if err := s.Scan(&req.ID, &req.Title, &req.Motivation, &req.UserID, &req.AssetID, &req.Status,
		&req.Motive, &req.CreatedOn, &decided); err != nil {
		return nil, err
	}
	if decided.Valid {
		t := decided.Time
		req.DecidedOn = &t
	}
	return req, nil
}

func (r *requestRepository) Create(ctx context.Context, req *domain.Request) error {
	query := `INSERT INTO requests (title, motivation, user_id, asset_id, status, created_on)
	          VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`
	logger.DatabaseCall("INSERT", "requests", "userID", req.UserID, "assetID", req.AssetID)
	err := r.db.QueryRowContext(ctx, query, req.Title, req.Motivation, req.UserID, req.AssetID, req.Status, req.CreatedOn).Scan(&req.ID)
	logger.DatabaseResult("INSERT", 1, err, "requestID", req.ID)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return nil
}

func (r *requestRepository) GetByID(ctx context.Context, id int32) (*domain.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM requests WHERE id = $1`
	req, err := scanRequest(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(err, "get request", "request", id)
	}
	return req, nil
}

func (r *requestRepository) UpdateIfPending(ctx context.Context, req *domain.Request) error {
	query := `UPDATE requests SET status=$1, motive=$2, decided_on=$3 WHERE id=$4 AND status=$5`
	logger.DatabaseCall("UPDATE", "requests", "requestID", req.ID, "next", req.Status)
	res, err := r.db.ExecContext(ctx, query, req.Status, req.Motive, req.DecidedOn, req.ID, domain.RequestStatusPending)
	if err != nil {
		logger.DatabaseResult("UPDATE", 0, err, "requestID", req.ID)
		return fmt.Errorf("update request: %w", err)
	}
	n, err := res.RowsAffected()
	logger.DatabaseResult("UPDATE", n, err, "requestID", req.ID)
	if err != nil {
		return fmt.Errorf("update request: %w", err)
	}
	if n == 0 {
		cur, err := r.GetByID(ctx, req.ID)
		if err != nil {
			return err
		}
		return domain.NewInvalidTransition("update request", cur.Status, req.Status)
	}
	return nil
}

func (r *requestRepository) Delete(ctx context.Context, id int32) error {
	logger.DatabaseCall("DELETE", "requests", "requestID", id)
	res, err := r.db.ExecContext(ctx, `DELETE FROM requests WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete request: %w", err)
	}
	return checkAffected(res, "delete request", "request", id)
}

func (r *requestRepository) List(ctx context.Context, f domain.RequestFilter) ([]domain.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM requests WHERE 1=1`
	var args []any
	if f.UserID != nil {
		args = append(args, *f.UserID)
		query += fmt.Sprintf(" AND user_id = $%d", len(args))
	}
	if f.AssetID != nil {
		args = append(args, *f.AssetID)
		query += fmt.Sprintf(" AND asset_id = $%d", len(args))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += " ORDER BY created_on DESC, id DESC"

	logger.DatabaseCall("SELECT", "requests", "filter", f)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		logger.DatabaseResult("SELECT", 0, err)
		return nil, fmt.Errorf("list requests: %w", err)
	}
	defer rows.Close()

	var out []domain.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("list requests: %w", err)
		}
		out = append(out, *req)
	}
	err = rows.Err()
	logger.DatabaseResult("SELECT", int64(len(out)), err, "filter", f)
	return out, err
}
