package domain

import (
	"strings"
	"time"
)

// Event is a calendar entry, optionally tied to an asset reservation.
type Event struct {
	ID          int32     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	UserID      int32     `json:"user_id"`
	AssetID     *int32    `json:"asset_id,omitempty"`
	CreatedOn   time.Time `json:"created_on"`
	UpdatedOn   time.Time `json:"updated_on"`
}

func (e *Event) Validate() error {
	if strings.TrimSpace(e.Title) == "" {
		return NewValidationError("event", "title is required")
	}
	if e.UserID == 0 {
		return NewValidationError("event", "owner is required")
	}
	if e.Start.IsZero() || e.End.IsZero() {
		return NewValidationError("event", "start and end are required")
	}
	if !e.End.After(e.Start) {
		return NewValidationError("event", "end must be after start")
	}
	return nil
}

// CanBeManagedBy reports whether the actor may edit or delete the event.
func (e *Event) CanBeManagedBy(actor *User) bool {
	return actor != nil && (actor.ID == e.UserID || actor.IsAdmin())
}
