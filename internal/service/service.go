package service

import (
	"context"

	"zephyrm-backend/internal/domain"
)

type AssetService interface {
	Create(ctx context.Context, asset *domain.Asset) error
	Get(ctx context.Context, id int32) (*domain.Asset, error)
	List(ctx context.Context) ([]domain.Asset, error)
	// Update applies a generic edit. A changed state/user pair is routed
	// through the state machine.
	Update(ctx context.Context, asset *domain.Asset) (*domain.Asset, error)
	Delete(ctx context.Context, id int32) error

	Assign(ctx context.Context, assetID, userID int32) (*domain.Asset, error)
	// AssignFromFree is Assign without the same-holder no-op: it succeeds
	// only when the asset is FREE at the time of the write.
	AssignFromFree(ctx context.Context, assetID, userID int32) (*domain.Asset, error)
	Release(ctx context.Context, assetID int32) (*domain.Asset, error)
	SetState(ctx context.Context, assetID int32, state domain.AssetState) (*domain.Asset, error)
	Apply(ctx context.Context, assetID int32, ev domain.AssetEvent) (*domain.Asset, error)
}

type RequestService interface {
	CreateRequest(ctx context.Context, userID, assetID int32, title, motivation string) (*domain.Request, error)
	Approve(ctx context.Context, requestID, targetAssetID, targetUserID int32) (*domain.Request, error)
	Deny(ctx context.Context, requestID int32, motive string) (*domain.Request, error)
	Delete(ctx context.Context, requestID, requestingUserID int32) error
	Get(ctx context.Context, id int32) (*domain.Request, error)
	List(ctx context.Context, filter domain.RequestFilter) ([]domain.Request, error)
	// MarkReturned releases an asset on behalf of its current holder.
	MarkReturned(ctx context.Context, assetID, userID int32) (*domain.Asset, error)
}

type NotificationService interface {
	// Notify persists n and pushes it to the recipient's live channels.
	Notify(ctx context.Context, n *domain.Notification) error
	// NotifyAdmins stores one copy of tpl per administrator.
	NotifyAdmins(ctx context.Context, tpl domain.Notification) ([]domain.Notification, error)
	List(ctx context.Context, userID int32) ([]domain.Notification, error)
	MarkRead(ctx context.Context, id, actorID int32) error
	MarkAllRead(ctx context.Context, userID int32) (int64, error)
	Delete(ctx context.Context, id, actorID int32) error
}

type EventService interface {
	Create(ctx context.Context, event *domain.Event) error
	Update(ctx context.Context, actor *domain.User, event *domain.Event) error
	Delete(ctx context.Context, actor *domain.User, id int32) error
	Get(ctx context.Context, id int32) (*domain.Event, error)
	ListByUser(ctx context.Context, userID int32) ([]domain.Event, error)
	List(ctx context.Context) ([]domain.Event, error)
}

type UserService interface {
	Get(ctx context.Context, id int32) (*domain.User, error)
	Create(ctx context.Context, user *domain.User) error
	ListAdmins(ctx context.Context) ([]domain.User, error)
}

// ReminderScheduler is implemented by the scheduler package. Events drive
// it explicitly instead of reaching for a global.
type ReminderScheduler interface {
	Schedule(ctx context.Context, event *domain.Event) error
	Cancel(ctx context.Context, eventID int32) error
}

// Deliverer pushes a stored notification to a user's live channels. A user
// without channels is not an error.
type Deliverer interface {
	Deliver(ctx context.Context, userID int32, n *domain.Notification) error
}

// Mailer sends plain-text email. Failures are logged by callers, never
// surfaced to the workflow.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}
