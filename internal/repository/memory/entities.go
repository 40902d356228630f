package memory

import (
	"context"
	"sort"

	"zephyrm-backend/internal/domain"
)

type userRepository struct{ st *state }

func (r *userRepository) Create(ctx context.Context, u *domain.User) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	if u.ID == 0 {
		u.ID = r.st.nextID()
	} else if u.ID > r.st.seq {
		r.st.seq = u.ID
	}
	if u.CreatedOn.IsZero() {
		u.CreatedOn = r.st.now()
	}
	r.st.users[u.ID] = *u
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id int32) (*domain.User, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()
	u, ok := r.st.users[id]
	if !ok {
		return nil, domain.NewNotFound("get user", "user", id)
	}
	return &u, nil
}

func (r *userRepository) ListByRole(ctx context.Context, role domain.UserRole) ([]domain.User, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()
	var out []domain.User
	for _, u := range r.st.users {
		if u.Role == role {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type assetRepository struct{ st *state }

func (r *assetRepository) tagTaken(a *domain.Asset) bool {
	if a.TagID == nil {
		return false
	}
	for id, other := range r.st.assets {
		if id != a.ID && other.TagID != nil && *other.TagID == *a.TagID {
			return true
		}
	}
	return false
}

func (r *assetRepository) Create(ctx context.Context, a *domain.Asset) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	if r.tagTaken(a) {
		return domain.NewConflict("create asset", "tag %q already in use", *a.TagID)
	}
	a.ID = r.st.nextID()
	a.CreatedOn = r.st.now()
	a.UpdatedOn = a.CreatedOn
	r.st.assets[a.ID] = cloneAsset(*a)
	return nil
}

func (r *assetRepository) GetByID(ctx context.Context, id int32) (*domain.Asset, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()
	a, ok := r.st.assets[id]
	if !ok {
		return nil, domain.NewNotFound("get asset", "asset", id)
	}
	a = cloneAsset(a)
	return &a, nil
}

func (r *assetRepository) Update(ctx context.Context, a *domain.Asset) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	return r.write(a, nil)
}

func (r *assetRepository) UpdateIfState(ctx context.Context, a *domain.Asset, expected domain.AssetState) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	return r.write(a, &expected)
}

func (r *assetRepository) write(a *domain.Asset, expected *domain.AssetState) error {
	cur, ok := r.st.assets[a.ID]
	if !ok {
		return domain.NewNotFound("update asset", "asset", a.ID)
	}
	if expected != nil && cur.State != *expected {
		return domain.NewConflict("update asset", "asset %d is %s, expected %s", a.ID, cur.State, *expected)
	}
	if r.tagTaken(a) {
		return domain.NewConflict("update asset", "tag %q already in use", *a.TagID)
	}
	a.CreatedOn = cur.CreatedOn
	a.UpdatedOn = r.st.now()
	r.st.assets[a.ID] = cloneAsset(*a)
	return nil
}

func (r *assetRepository) Delete(ctx context.Context, id int32) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	if _, ok := r.st.assets[id]; !ok {
		return domain.NewNotFound("delete asset", "asset", id)
	}
	delete(r.st.assets, id)
	return nil
}

func (r *assetRepository) List(ctx context.Context) ([]domain.Asset, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()
	out := make([]domain.Asset, 0, len(r.st.assets))
	for _, a := range r.st.assets {
		out = append(out, cloneAsset(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type requestRepository struct{ st *state }

func (r *requestRepository) Create(ctx context.Context, req *domain.Request) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	req.ID = r.st.nextID()
	r.st.requests[req.ID] = cloneRequest(*req)
	return nil
}

func (r *requestRepository) GetByID(ctx context.Context, id int32) (*domain.Request, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()
	req, ok := r.st.requests[id]
	if !ok {
		return nil, domain.NewNotFound("get request", "request", id)
	}
	req = cloneRequest(req)
	return &req, nil
}

func (r *requestRepository) UpdateIfPending(ctx context.Context, req *domain.Request) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	cur, ok := r.st.requests[req.ID]
	if !ok {
		return domain.NewNotFound("update request", "request", req.ID)
	}
	if cur.Status != domain.RequestStatusPending {
		return domain.NewInvalidTransition("update request", cur.Status, req.Status)
	}
	req.CreatedOn = cur.CreatedOn
	r.st.requests[req.ID] = cloneRequest(*req)
	return nil
}

func (r *requestRepository) Delete(ctx context.Context, id int32) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	if _, ok := r.st.requests[id]; !ok {
		return domain.NewNotFound("delete request", "request", id)
	}
	delete(r.st.requests, id)
	return nil
}

func (r *requestRepository) List(ctx context.Context, f domain.RequestFilter) ([]domain.Request, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()
	var out []domain.Request
	for _, req := range r.st.requests {
		if f.UserID != nil && req.UserID != *f.UserID {
			continue
		}
		if f.AssetID != nil && req.AssetID != *f.AssetID {
			continue
		}
		if f.Status != "" && req.Status != f.Status {
			continue
		}
		out = append(out, cloneRequest(req))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

type eventRepository struct{ st *state }

func (r *eventRepository) Create(ctx context.Context, e *domain.Event) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	e.ID = r.st.nextID()
	e.CreatedOn = r.st.now()
	e.UpdatedOn = e.CreatedOn
	r.st.events[e.ID] = cloneEvent(*e)
	return nil
}

func (r *eventRepository) GetByID(ctx context.Context, id int32) (*domain.Event, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()
	e, ok := r.st.events[id]
	if !ok {
		return nil, domain.NewNotFound("get event", "event", id)
	}
	e = cloneEvent(e)
	return &e, nil
}

func (r *eventRepository) Update(ctx context.Context, e *domain.Event) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	cur, ok := r.st.events[e.ID]
	if !ok {
		return domain.NewNotFound("update event", "event", e.ID)
	}
	e.CreatedOn = cur.CreatedOn
	e.UpdatedOn = r.st.now()
	r.st.events[e.ID] = cloneEvent(*e)
	return nil
}

func (r *eventRepository) Delete(ctx context.Context, id int32) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	if _, ok := r.st.events[id]; !ok {
		return domain.NewNotFound("delete event", "event", id)
	}
	delete(r.st.events, id)
	return nil
}

func (r *eventRepository) ListByUser(ctx context.Context, userID int32) ([]domain.Event, error) {
	return r.list(func(e domain.Event) bool { return e.UserID == userID })
}

func (r *eventRepository) List(ctx context.Context) ([]domain.Event, error) {
	return r.list(func(domain.Event) bool { return true })
}

func (r *eventRepository) list(keep func(domain.Event) bool) ([]domain.Event, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()
	var out []domain.Event
	for _, e := range r.st.events {
		if keep(e) {
			out = append(out, cloneEvent(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}
