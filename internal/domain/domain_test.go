package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func int32Ptr(v int32) *int32 { return &v }

func TestTransition(t *testing.T) {
	free := Asset{ID: 1, Title: "Projector", State: AssetStateFree}
	onLoan := Asset{ID: 1, Title: "Projector", State: AssetStateOnLoan, UserID: int32Ptr(7)}
	broken := Asset{ID: 1, Title: "Projector", State: AssetStateBroken}

	tests := []struct {
		name      string
		asset     Asset
		event     AssetEvent
		wantState AssetState
		wantUser  *int32
		changed   bool
		wantErr   error
	}{
		{"assign free", free, AssignTo(7), AssetStateOnLoan, int32Ptr(7), true, nil},
		{"assign same holder is a no-op", onLoan, AssignTo(7), AssetStateOnLoan, int32Ptr(7), false, nil},
		{"assign other holder conflicts", onLoan, AssignTo(8), AssetStateOnLoan, int32Ptr(7), false, ErrConflict},
		{"assign broken conflicts", broken, AssignTo(7), AssetStateBroken, nil, false, ErrConflict},
		{"release on loan", onLoan, Release(), AssetStateFree, nil, true, nil},
		{"release free is a no-op", free, Release(), AssetStateFree, nil, false, nil},
		{"release broken is invalid", broken, Release(), AssetStateBroken, nil, false, ErrInvalidTransition},
		{"break on loan clears holder", onLoan, SetState(AssetStateBroken), AssetStateBroken, nil, true, nil},
		{"maintenance from free", free, SetState(AssetStateUnderMaintenance), AssetStateUnderMaintenance, nil, true, nil},
		{"set on loan without holder", free, SetState(AssetStateOnLoan), AssetStateFree, nil, false, ErrValidation},
		{"unknown state", free, SetState("LOST"), AssetStateFree, nil, false, ErrValidation},
		{"return by holder", onLoan, ReturnBy(7), AssetStateFree, nil, true, nil},
		{"return by someone else", onLoan, ReturnBy(8), AssetStateOnLoan, int32Ptr(7), false, ErrForbidden},
		{"return of a free asset", free, ReturnBy(7), AssetStateFree, nil, false, ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, changed, err := Transition(tt.asset, tt.event)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.changed, changed)
			assert.Equal(t, tt.wantState, next.State)
			assert.Equal(t, tt.wantUser, next.UserID)
			assert.False(t, next.Inconsistent())
		})
	}
}

func TestTransition_DoesNotMutateInput(t *testing.T) {
	a := Asset{ID: 1, Title: "Camera", State: AssetStateFree}
	_, _, err := Transition(a, AssignTo(3))
	require.NoError(t, err)
	assert.Equal(t, AssetStateFree, a.State)
	assert.Nil(t, a.UserID)
}

func TestAsset_Validate(t *testing.T) {
	a := Asset{Title: "Laptop", State: AssetStateBroken, UserID: int32Ptr(2)}
	assert.ErrorIs(t, a.Validate(), ErrValidation)
	assert.True(t, a.Inconsistent())

	a.UserID = nil
	assert.NoError(t, a.Validate())

	empty := ""
	a.TagID = &empty
	assert.ErrorIs(t, a.Validate(), ErrValidation)
}

func TestRequestStatus_Transitions(t *testing.T) {
	assert.True(t, RequestStatusPending.CanTransitionTo(RequestStatusApproved))
	assert.True(t, RequestStatusPending.CanTransitionTo(RequestStatusDenied))
	assert.False(t, RequestStatusPending.CanTransitionTo(RequestStatusPending))
	for _, terminal := range []RequestStatus{RequestStatusApproved, RequestStatusDenied} {
		for _, next := range []RequestStatus{RequestStatusPending, RequestStatusApproved, RequestStatusDenied} {
			assert.False(t, terminal.CanTransitionTo(next), "%s -> %s", terminal, next)
		}
	}

	r := Request{Status: RequestStatusApproved}
	err := r.Decide(RequestStatusDenied, "late", time.Now())
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, RequestStatusApproved, r.Status)
}

func TestRequest_Validate(t *testing.T) {
	r := Request{Title: " ", UserID: 1}
	err := r.Validate()
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "title, motivation, asset")
}

func TestEvent_Validate(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	e := Event{Title: "Demo", UserID: 1, Start: start, End: start}
	assert.ErrorIs(t, e.Validate(), ErrValidation)
	e.End = start.Add(time.Hour)
	assert.NoError(t, e.Validate())
}

func TestReminderFireTime(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	lead := 30 * time.Minute

	fire, ok := ReminderFireTime(now.Add(2*time.Hour), now, lead)
	assert.True(t, ok)
	assert.Equal(t, now.Add(90*time.Minute), fire)

	_, ok = ReminderFireTime(now.Add(20*time.Minute), now, lead)
	assert.False(t, ok)

	_, ok = ReminderFireTime(now.Add(30*time.Minute), now, lead)
	assert.False(t, ok, "exactly the lead interval is not more than it")
}

func TestError_KindAndIs(t *testing.T) {
	err := NewNotFound("get asset", "asset", 4)
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrConflict))
	assert.Equal(t, "get asset: asset 4 not found", err.Error())
	assert.Equal(t, ErrorKind(""), KindOf(errors.New("boom")))
}
