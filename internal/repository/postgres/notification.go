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

const notificationColumns = `id, user_id, type, title, COALESCE(description, ''), event_id, asset_id, request_id, event_date, created_on, is_read`

type notificationRepository struct {
	db *sql.DB
}

func NewNotificationRepository(db *sql.DB) repository.NotificationRepository {
	return &notificationRepository{db: db}
}

func scanNotification(s rowScanner) (*domain.Notification, error) {
	n := &domain.Notification{}
	var eventID, assetID, requestID sql.NullInt32
	if err := s.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Description, &eventID, &assetID, &requestID,
		&n.EventDate, &n.CreatedOn, &n.Read); err != nil {
		return nil, err
	}
	n.EventID = int32Ptr(eventID)
	n.AssetID = int32Ptr(assetID)
	n.RequestID = int32Ptr(requestID)
	return n, nil
}

func (r *notificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	logger.EnterMethod("notificationRepository.Create", "userID", n.UserID, "type", n.Type)

	query := `INSERT INTO notifications (user_id, type, title, description, event_id, asset_id, request_id, event_date, created_on, is_read)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`
	if n.CreatedOn.IsZero() {
		n.CreatedOn = time.Now()
	}
	logger.DatabaseCall("INSERT", "notifications", "userID", n.UserID)
	err := r.db.QueryRowContext(ctx, query, n.UserID, n.Type, n.Title, n.Description, nullInt32(n.EventID),
		nullInt32(n.AssetID), nullInt32(n.RequestID), n.EventDate, n.CreatedOn, n.Read).Scan(&n.ID)
	logger.DatabaseResult("INSERT", 1, err, "notificationID", n.ID)

	if err != nil {
		logger.ExitMethodWithError("notificationRepository.Create", err, "userID", n.UserID)
		return fmt.Errorf("create notification: %w", err)
	}
	logger.ExitMethod("notificationRepository.Create", "notificationID", n.ID)
	return nil
}

func (r *notificationRepository) GetByID(ctx context.Context, id int32) (*domain.Notification, error) {
	n, err := scanNotification(r.db.QueryRowContext(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "get notification", "notification", id)
	}
	return n, nil
}

func (r *notificationRepository) ListByUser(ctx context.Context, userID int32) ([]domain.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE user_id = $1 ORDER BY created_on DESC, id DESC`
	logger.DatabaseCall("SELECT", "notifications", "userID", userID)
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		logger.DatabaseResult("SELECT", 0, err, "userID", userID)
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var notes []domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("list notifications: %w", err)
		}
		notes = append(notes, *n)
	}
	err = rows.Err()
	logger.DatabaseResult("SELECT", int64(len(notes)), err, "userID", userID)
	return notes, err
}

// MarkRead is idempotent: updating an already read row still affects it.
func (r *notificationRepository) MarkRead(ctx context.Context, id int32) error {
	logger.DatabaseCall("UPDATE", "notifications", "notificationID", id)
	res, err := r.db.ExecContext(ctx, `UPDATE notifications SET is_read = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return checkAffected(res, "mark notification read", "notification", id)
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, userID int32) (int64, error) {
	logger.DatabaseCall("UPDATE", "notifications", "userID", userID)
	res, err := r.db.ExecContext(ctx, `UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND is_read = FALSE`, userID)
	if err != nil {
		logger.DatabaseResult("UPDATE", 0, err, "userID", userID)
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	n, err := res.RowsAffected()
	logger.DatabaseResult("UPDATE", n, err, "userID", userID)
	return n, err
}

func (r *notificationRepository) Delete(ctx context.Context, id int32) error {
	logger.DatabaseCall("DELETE", "notifications", "notificationID", id)
	res, err := r.db.ExecContext(ctx, `DELETE FROM notifications WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	return checkAffected(res, "delete notification", "notification", id)
}

func (r *notificationRepository) PurgeRead(ctx context.Context, before time.Time) (int64, error) {
	logger.DatabaseCall("DELETE", "notifications", "before", before)
	res, err := r.db.ExecContext(ctx, `DELETE FROM notifications WHERE is_read = TRUE AND created_on < $1`, before)
	if err != nil {
		logger.DatabaseResult("DELETE", 0, err)
		return 0, fmt.Errorf("purge notifications: %w", err)
	}
	n, err := res.RowsAffected()
	logger.DatabaseResult("DELETE", n, err, "before", before)
	return n, err
}
