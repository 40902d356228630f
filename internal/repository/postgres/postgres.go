package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"

	"zephyrm-backend/internal/domain"
	"zephyrm-backend/internal/logger"
	"zephyrm-backend/internal/repository"
)

const uniqueViolation = "23505"

type Store struct {
	db *sql.DB
	repository.UserRepository
	repository.AssetRepository
	repository.RequestRepository
	repository.EventRepository
	repository.NotificationRepository
	repository.JobRepository
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		db:                     db,
		UserRepository:         NewUserRepository(db),
		AssetRepository:        NewAssetRepository(db),
		RequestRepository:      NewRequestRepository(db),
		EventRepository:        NewEventRepository(db),
		NotificationRepository: NewNotificationRepository(db),
		JobRepository:          NewJobRepository(db),
	}
}

// DriverName maps the configured driver to a database/sql driver name.
// "postgres" uses lib/pq, "pgx" the pgx stdlib adapter.
func DriverName(driver string) (string, error) {
	switch driver {
	case "postgres", "pq":
		return "postgres", nil
	case "pgx":
		return "pgx", nil
	}
	return "", fmt.Errorf("unsupported database driver %q", driver)
}

// notFound turns sql.ErrNoRows into a domain not-found error.
func notFound(err error, op, entity string, id any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NewNotFound(op, entity, id)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// isUniqueViolation recognizes unique constraint errors from both drivers.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == uniqueViolation
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation
	}
	return false
}

func checkAffected(res sql.Result, op, entity string, id any) error {
	n, err := res.RowsAffected()
	logger.DatabaseResult(op, n, err, entity+"ID", id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return domain.NewNotFound(op, entity, id)
	}
	return nil
}

func nullInt32(p *int32) sql.NullInt32 {
	if p == nil {
		return sql.NullInt32{}
	}
	return sql.NullInt32{Int32: *p, Valid: true}
}

func int32Ptr(n sql.NullInt32) *int32 {
	if !n.Valid {
		return nil
	}
	v := n.Int32
	return &v
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func stringPtr(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	v := n.String
	return &v
}
