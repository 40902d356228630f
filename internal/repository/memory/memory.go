// Package memory is an in-process Entity Store used in development mode and
// by service tests. Records are copied on the way in and out so callers never
// share memory with the store.
package memory

import (
	"sync"
	"time"

	"zephyrm-backend/internal/domain"
	"zephyrm-backend/internal/repository"
)

type state struct {
	mu sync.RWMutex

	users         map[int32]domain.User
	assets        map[int32]domain.Asset
	requests      map[int32]domain.Request
	events        map[int32]domain.Event
	notifications map[int32]domain.Notification
	jobs          map[string]domain.ScheduledJob

	seq int32
	now func() time.Time
}

func (s *state) nextID() int32 {
	s.seq++
	return s.seq
}

// Store bundles the repositories like postgres.Store does.
type Store struct {
	repository.UserRepository
	repository.AssetRepository
	repository.RequestRepository
	repository.EventRepository
	repository.NotificationRepository
	repository.JobRepository
}

// NewStore returns an empty store. now may be nil.
func NewStore(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	st := &state{
		users:         map[int32]domain.User{},
		assets:        map[int32]domain.Asset{},
		requests:      map[int32]domain.Request{},
		events:        map[int32]domain.Event{},
		notifications: map[int32]domain.Notification{},
		jobs:          map[string]domain.ScheduledJob{},
		now:           now,
	}
	return &Store{
		UserRepository:         &userRepository{st},
		AssetRepository:        &assetRepository{st},
		RequestRepository:      &requestRepository{st},
		EventRepository:        &eventRepository{st},
		NotificationRepository: &notificationRepository{st},
		JobRepository:          &jobRepository{st},
	}
}

func cloneInt32(p *int32) *int32 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneTime(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneAsset(a domain.Asset) domain.Asset {
	a.UserID = cloneInt32(a.UserID)
	a.TagID = cloneString(a.TagID)
	return a
}

func cloneRequest(r domain.Request) domain.Request {
	r.DecidedOn = cloneTime(r.DecidedOn)
	return r
}

func cloneEvent(e domain.Event) domain.Event {
	e.AssetID = cloneInt32(e.AssetID)
	return e
}

func cloneNotification(n domain.Notification) domain.Notification {
	n.EventID = cloneInt32(n.EventID)
	n.AssetID = cloneInt32(n.AssetID)
	n.RequestID = cloneInt32(n.RequestID)
	return n
}
