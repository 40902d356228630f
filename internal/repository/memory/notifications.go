package memory

import (
	"context"
	"sort"
	"time"

	"zephyrm-backend/internal/domain"
)

type notificationRepository struct{ st *state }

func (r *notificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	n.ID = r.st.nextID()
	if n.CreatedOn.IsZero() {
		n.CreatedOn = r.st.now()
	}
	r.st.notifications[n.ID] = cloneNotification(*n)
	return nil
}

func (r *notificationRepository) GetByID(ctx context.Context, id int32) (*domain.Notification, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()
	n, ok := r.st.notifications[id]
	if !ok {
		return nil, domain.NewNotFound("get notification", "notification", id)
	}
	n = cloneNotification(n)
	return &n, nil
}

func (r *notificationRepository) ListByUser(ctx context.Context, userID int32) ([]domain.Notification, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()
	var out []domain.Notification
	for _, n := range r.st.notifications {
		if n.UserID == userID {
			out = append(out, cloneNotification(n))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, id int32) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	n, ok := r.st.notifications[id]
	if !ok {
		return domain.NewNotFound("mark notification read", "notification", id)
	}
	n.Read = true
	r.st.notifications[id] = n
	return nil
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, userID int32) (int64, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	var count int64
	for id, n := range r.st.notifications {
		if n.UserID == userID && !n.Read {
			n.Read = true
			r.st.notifications[id] = n
			count++
		}
	}
	return count, nil
}

func (r *notificationRepository) Delete(ctx context.Context, id int32) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	if _, ok := r.st.notifications[id]; !ok {
		return domain.NewNotFound("delete notification", "notification", id)
	}
	delete(r.st.notifications, id)
	return nil
}

func (r *notificationRepository) PurgeRead(ctx context.Context, before time.Time) (int64, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	var count int64
	for id, n := range r.st.notifications {
		if n.Read && n.CreatedOn.Before(before) {
			delete(r.st.notifications, id)
			count++
		}
	}
	return count, nil
}

type jobRepository struct{ st *state }

func (r *jobRepository) Create(ctx context.Context, j *domain.ScheduledJob) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	if _, ok := r.st.jobs[j.ID]; ok {
		return domain.NewConflict("create job", "job %s already exists", j.ID)
	}
	j.CreatedOn = r.st.now()
	j.UpdatedOn = j.CreatedOn
	r.st.jobs[j.ID] = *j
	return nil
}

func (r *jobRepository) GetByID(ctx context.Context, id string) (*domain.ScheduledJob, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()
	j, ok := r.st.jobs[id]
	if !ok {
		return nil, domain.NewNotFound("get job", "job", id)
	}
	return &j, nil
}

func (r *jobRepository) Claim(ctx context.Context, id string) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	j, ok := r.st.jobs[id]
	if !ok {
		return domain.NewNotFound("claim job", "job", id)
	}
	if j.Status != domain.JobStatusScheduled {
		return domain.NewConflict("claim job", "job %s is %s", id, j.Status)
	}
	j.Status = domain.JobStatusFired
	j.UpdatedOn = r.st.now()
	r.st.jobs[id] = j
	return nil
}

func (r *jobRepository) Annotate(ctx context.Context, id, message string) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	j, ok := r.st.jobs[id]
	if !ok {
		return domain.NewNotFound("annotate job", "job", id)
	}
	j.LastError = message
	j.UpdatedOn = r.st.now()
	r.st.jobs[id] = j
	return nil
}

func (r *jobRepository) CancelByEvent(ctx context.Context, eventID int32) (int64, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	var count int64
	for id, j := range r.st.jobs {
		if j.EventID == eventID && j.Status == domain.JobStatusScheduled {
			j.Status = domain.JobStatusCancelled
			j.UpdatedOn = r.st.now()
			r.st.jobs[id] = j
			count++
		}
	}
	return count, nil
}

func (r *jobRepository) scheduled() []domain.ScheduledJob {
	var out []domain.ScheduledJob
	for _, j := range r.st.jobs {
		if j.Status == domain.JobStatusScheduled {
			out = append(out, j)
		}
	}
	sort.Slice(out, func(i, k int) bool {
		if out[i].FireTime.Equal(out[k].FireTime) {
			return out[i].ID < out[k].ID
		}
		return out[i].FireTime.Before(out[k].FireTime)
	})
	return out
}

func (r *jobRepository) NextScheduled(ctx context.Context) (*domain.ScheduledJob, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()
	jobs := r.scheduled()
	if len(jobs) == 0 {
		return nil, nil
	}
	return &jobs[0], nil
}

func (r *jobRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]domain.ScheduledJob, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()
	var out []domain.ScheduledJob
	for _, j := range r.scheduled() {
		if j.FireTime.After(now) || (limit > 0 && len(out) >= limit) {
			break
		}
		out = append(out, j)
	}
	return out, nil
}

func (r *jobRepository) ListScheduled(ctx context.Context) ([]domain.ScheduledJob, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()
	return r.scheduled(), nil
}

func (r *jobRepository) PurgeSettled(ctx context.Context, before time.Time) (int64, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	var count int64
	for id, j := range r.st.jobs {
		if j.Status != domain.JobStatusScheduled && j.UpdatedOn.Before(before) {
			delete(r.st.jobs, id)
			count++
		}
	}
	return count, nil
}
