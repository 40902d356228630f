package repository

import (
	"context"
	"time"

	"zephyrm-backend/internal/domain"
)

// The repositories below are the Entity Store contract. No transactions are
// assumed; the conditional updates are the only atomicity the core relies on.

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id int32) (*domain.User, error)
	ListByRole(ctx context.Context, role domain.UserRole) ([]domain.User, error)
}

type AssetRepository interface {
	Create(ctx context.Context, asset *domain.Asset) error
	GetByID(ctx context.Context, id int32) (*domain.Asset, error)
	// Update overwrites the record unconditionally (descriptive edits).
	Update(ctx context.Context, asset *domain.Asset) error
	// UpdateIfState writes asset only if the stored state still equals
	// expected, returning a conflict error otherwise.
	UpdateIfState(ctx context.Context, asset *domain.Asset, expected domain.AssetState) error
	Delete(ctx context.Context, id int32) error
	List(ctx context.Context) ([]domain.Asset, error)
}

type RequestRepository interface {
	Create(ctx context.Context, req *domain.Request) error
	GetByID(ctx context.Context, id int32) (*domain.Request, error)
	// UpdateIfPending stores a decision only while the stored row is still
	// pending, returning an invalid transition error otherwise.
	UpdateIfPending(ctx context.Context, req *domain.Request) error
	Delete(ctx context.Context, id int32) error
	List(ctx context.Context, filter domain.RequestFilter) ([]domain.Request, error)
}

type EventRepository interface {
	Create(ctx context.Context, event *domain.Event) error
	GetByID(ctx context.Context, id int32) (*domain.Event, error)
	Update(ctx context.Context, event *domain.Event) error
	Delete(ctx context.Context, id int32) error
	ListByUser(ctx context.Context, userID int32) ([]domain.Event, error)
	List(ctx context.Context) ([]domain.Event, error)
}

type NotificationRepository interface {
	Create(ctx context.Context, note *domain.Notification) error
	GetByID(ctx context.Context, id int32) (*domain.Notification, error)
	ListByUser(ctx context.Context, userID int32) ([]domain.Notification, error)
	MarkRead(ctx context.Context, id int32) error
	MarkAllRead(ctx context.Context, userID int32) (int64, error)
	Delete(ctx context.Context, id int32) error
	PurgeRead(ctx context.Context, before time.Time) (int64, error)
}

type JobRepository interface {
	Create(ctx context.Context, job *domain.ScheduledJob) error
	GetByID(ctx context.Context, id string) (*domain.ScheduledJob, error)
	// Claim moves a job from SCHEDULED to FIRED. It returns a conflict error
	// when the job is no longer scheduled (cancelled or claimed elsewhere).
	Claim(ctx context.Context, id string) error
	// Annotate records an error message on a settled job.
	Annotate(ctx context.Context, id, message string) error
	// CancelByEvent marks every scheduled job of the event as cancelled.
	CancelByEvent(ctx context.Context, eventID int32) (int64, error)
	// NextScheduled returns the scheduled job with the earliest fire time, or nil.
	NextScheduled(ctx context.Context) (*domain.ScheduledJob, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]domain.ScheduledJob, error)
	ListScheduled(ctx context.Context) ([]domain.ScheduledJob, error)
	// PurgeSettled deletes fired and cancelled jobs last updated before the cutoff.
	PurgeSettled(ctx context.Context, before time.Time) (int64, error)
}
