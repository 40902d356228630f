package domain

import (
	"strings"
	"time"
)

type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "PENDING"
	RequestStatusApproved RequestStatus = "APPROVED"
	RequestStatusDenied   RequestStatus = "DENIED"
)

// Terminal reports whether no further transition is accepted.
func (s RequestStatus) Terminal() bool {
	return s == RequestStatusApproved || s == RequestStatusDenied
}

// CanTransitionTo allows only PENDING -> APPROVED and PENDING -> DENIED.
func (s RequestStatus) CanTransitionTo(next RequestStatus) bool {
	return s == RequestStatusPending && next.Terminal()
}

type Request struct {
	ID         int32         `json:"id"`
	Title      string        `json:"title"`
	Motivation string        `json:"motivation"`
	UserID     int32         `json:"user_id"`
	AssetID    int32         `json:"asset_id"`
	Status     RequestStatus `json:"status"`
	Motive     string        `json:"motive,omitempty"` // reason recorded on denial
	CreatedOn  time.Time     `json:"created_on"`
	DecidedOn  *time.Time    `json:"decided_on,omitempty"`
}

func (r *Request) Validate() error {
	var missing []string
	if strings.TrimSpace(r.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(r.Motivation) == "" {
		missing = append(missing, "motivation")
	}
	if r.UserID == 0 {
		missing = append(missing, "user")
	}
	if r.AssetID == 0 {
		missing = append(missing, "asset")
	}
	if len(missing) > 0 {
		return NewValidationError("request", "missing required fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Decide moves a pending request into a terminal status.
func (r *Request) Decide(status RequestStatus, motive string, at time.Time) error {
	if !r.Status.CanTransitionTo(status) {
		return NewInvalidTransition("request", r.Status, status)
	}
	r.Status = status
	r.Motive = motive
	r.DecidedOn = &at
	return nil
}

type RequestFilter struct {
	UserID  *int32
	AssetID *int32
	Status  RequestStatus
}
