package domain

import "time"

type JobKind string

const JobKindSendReminder JobKind = "send-reminder"

type JobStatus string

const (
	JobStatusScheduled JobStatus = "SCHEDULED"
	JobStatusFired     JobStatus = "FIRED"
	JobStatusCancelled JobStatus = "CANCELLED"
)

// ReminderPayload is denormalized at scheduling time so the job row is
// readable without joining the event.
type ReminderPayload struct {
	UserID      int32  `json:"user_id"`
	EventID     int32  `json:"event_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// ScheduledJob is a durable future reminder.
type ScheduledJob struct {
	ID        string          `json:"id"`
	Kind      JobKind         `json:"kind"`
	EventID   int32           `json:"event_id"`
	FireTime  time.Time       `json:"fire_time"`
	Payload   ReminderPayload `json:"payload"`
	Status    JobStatus       `json:"status"`
	LastError string          `json:"last_error,omitempty"`
	CreatedOn time.Time       `json:"created_on"`
	UpdatedOn time.Time       `json:"updated_on"`
}

// ReminderFireTime returns when a reminder for start should fire and whether
// one should be scheduled at all: only when the fire time is still ahead.
func ReminderFireTime(start, now time.Time, lead time.Duration) (time.Time, bool) {
	fire := start.Add(-lead)
	return fire, fire.After(now)
}
