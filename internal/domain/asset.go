package domain

import "time"

type AssetState string

const (
	AssetStateFree             AssetState = "FREE"
	AssetStateOnLoan           AssetState = "ON_LOAN"
	AssetStateUnderMaintenance AssetState = "UNDER_MAINTENANCE"
	AssetStateBroken           AssetState = "BROKEN"
)

func (s AssetState) Valid() bool {
	switch s {
	case AssetStateFree, AssetStateOnLoan, AssetStateUnderMaintenance, AssetStateBroken:
		return true
	}
	return false
}

type Asset struct {
	ID              int32      `json:"id"`
	Title           string     `json:"title"`
	Category        string     `json:"category"`
	Description     string     `json:"description"`
	Location        string     `json:"location"`
	AcquisitionDate time.Time  `json:"acquisition_date"`
	State           AssetState `json:"state"`
	UserID          *int32     `json:"user_id,omitempty"`
	TagID           *string    `json:"tag_id,omitempty"` // physical tag, unique when present
	CreatedOn       time.Time  `json:"created_on"`
	UpdatedOn       time.Time  `json:"updated_on"`
}

// Validate checks required fields and the holder invariant: a user is set
// if and only if the asset is on loan.
func (a *Asset) Validate() error {
	if a.Title == "" {
		return NewValidationError("asset", "title is required")
	}
	if !a.State.Valid() {
		return NewValidationError("asset", "unknown state %q", a.State)
	}
	if a.Inconsistent() {
		return NewValidationError("asset", "user must be set exactly when state is %s", AssetStateOnLoan)
	}
	if a.TagID != nil && *a.TagID == "" {
		return NewValidationError("asset", "tag id must not be empty when present")
	}
	return nil
}

// Inconsistent reports a violation of the holder invariant. Legacy rows may
// carry one; they are flagged by the consistency audit, never repaired.
func (a *Asset) Inconsistent() bool {
	return (a.UserID != nil) != (a.State == AssetStateOnLoan)
}

// IsHeldBy reports whether the asset is on loan to userID.
func (a *Asset) IsHeldBy(userID int32) bool {
	return a.State == AssetStateOnLoan && a.UserID != nil && *a.UserID == userID
}

type AssetEventType string

const (
	AssetEventAssign   AssetEventType = "ASSIGN"
	AssetEventRelease  AssetEventType = "RELEASE"
	AssetEventSetState AssetEventType = "SET_STATE"
	// AssetEventReturn is a release requested by the holder themselves.
	AssetEventReturn AssetEventType = "RETURN"
)

// AssetEvent is one input of the asset state machine. State and user are
// only ever changed together through Transition.
type AssetEvent struct {
	Type   AssetEventType
	UserID int32
	State  AssetState
}

func AssignTo(userID int32) AssetEvent { return AssetEvent{Type: AssetEventAssign, UserID: userID} }
func Release() AssetEvent              { return AssetEvent{Type: AssetEventRelease} }
func SetState(s AssetState) AssetEvent { return AssetEvent{Type: AssetEventSetState, State: s} }
func ReturnBy(userID int32) AssetEvent { return AssetEvent{Type: AssetEventReturn, UserID: userID} }

// Transition computes the asset after applying ev. It never mutates a.
// The returned bool is false when the event leaves the asset unchanged.
func Transition(a Asset, ev AssetEvent) (Asset, bool, error) {
	next := a
	switch ev.Type {
	case AssetEventAssign:
		if a.IsHeldBy(ev.UserID) {
			return a, false, nil
		}
		if a.State != AssetStateFree {
			return a, false, NewConflict("assign", "asset %d is %s", a.ID, a.State)
		}
		uid := ev.UserID
		next.State = AssetStateOnLoan
		next.UserID = &uid
	case AssetEventRelease:
		if a.State == AssetStateFree && a.UserID == nil {
			return a, false, nil
		}
		if a.State != AssetStateOnLoan {
			return a, false, NewInvalidTransition("release", a.State, AssetStateFree)
		}
		next.State = AssetStateFree
		next.UserID = nil
	case AssetEventReturn:
		if !a.IsHeldBy(ev.UserID) {
			return a, false, NewForbidden("return asset", "asset %d is not on loan to user %d", a.ID, ev.UserID)
		}
		next.State = AssetStateFree
		next.UserID = nil
	case AssetEventSetState:
		if !ev.State.Valid() {
			return a, false, NewValidationError("set state", "unknown state %q", ev.State)
		}
		if ev.State == AssetStateOnLoan {
			if a.State == AssetStateOnLoan {
				return a, false, nil
			}
			return a, false, NewValidationError("set state", "%s requires a holder; assign the asset instead", AssetStateOnLoan)
		}
		if a.State == ev.State && a.UserID == nil {
			return a, false, nil
		}
		next.State = ev.State
		next.UserID = nil
	default:
		return a, false, NewValidationError("transition", "unknown asset event %q", ev.Type)
	}
	return next, true, nil
}
