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

type userRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) repository.UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, u *domain.User) error {
	query := `INSERT INTO users (email, name, role, created_on) VALUES ($1, $2, $3, $4) RETURNING id`
	u.CreatedOn = time.Now()
	logger.DatabaseCall("INSERT", "users", "email", u.Email, "role", u.Role)
	err := r.db.QueryRowContext(ctx, query, u.Email, u.Name, u.Role, u.CreatedOn).Scan(&u.ID)
	logger.DatabaseResult("INSERT", 1, err, "userID", u.ID)
	if isUniqueViolation(err) {
		return domain.NewConflict("create user", "email %q already registered", u.Email)
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id int32) (*domain.User, error) {
	u := &domain.User{}
	query := `SELECT id, email, name, role, created_on FROM users WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.CreatedOn)
	if err != nil {
		return nil, notFound(err, "get user", "user", id)
	}
	return u, nil
}

func (r *userRepository) ListByRole(ctx context.Context, role domain.UserRole) ([]domain.User, error) {
	query := `SELECT id, email, name, role, created_on FROM users WHERE role = $1 ORDER BY id`
	logger.DatabaseCall("SELECT", "users", "role", role)
	rows, err := r.db.QueryContext(ctx, query, role)
	if err != nil {
		logger.DatabaseResult("SELECT", 0, err, "role", role)
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.CreatedOn); err != nil {
			return nil, fmt.Errorf("list users: %w", err)
		}
		users = append(users, u)
	}
	err = rows.Err()
	logger.DatabaseResult("SELECT", int64(len(users)), err, "role", role)
	return users, err
}
