package domain

import "time"

type NotificationType string

const (
	NotificationTypeNewRequest        NotificationType = "NEW_REQUEST"
	NotificationTypeRequestApproved   NotificationType = "REQUEST_APPROVED"
	NotificationTypeRequestDenied     NotificationType = "REQUEST_DENIED"
	NotificationTypeReminderScheduled NotificationType = "REMINDER_SCHEDULED"
	NotificationTypeEventReminder     NotificationType = "EVENT_REMINDER"
	NotificationTypeAssetReturned     NotificationType = "ASSET_RETURNED"
)

// Notification is always scoped to a single recipient; messages addressed to
// a group (all admins) are fanned out into one row per user.
type Notification struct {
	ID          int32            `json:"id"`
	UserID      int32            `json:"user_id"`
	Type        NotificationType `json:"type"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	EventID     *int32           `json:"event_id,omitempty"`
	AssetID     *int32           `json:"asset_id,omitempty"`
	RequestID   *int32           `json:"request_id,omitempty"`
	EventDate   time.Time        `json:"event_date"`
	CreatedOn   time.Time        `json:"created_on"`
	Read        bool             `json:"read"`
}

func (n *Notification) Validate() error {
	if n.UserID == 0 {
		return NewValidationError("notification", "recipient is required")
	}
	if n.Title == "" {
		return NewValidationError("notification", "title is required")
	}
	return nil
}
