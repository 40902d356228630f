package http

import (
	"net/http"
	"time"

	"zephyrm-backend/internal/domain"
	"zephyrm-backend/internal/service"
)

type eventHandler struct {
	events service.EventService
}

type eventBody struct {
	Title       string    `json:"title" validate:"required,max=200"`
	Description string    `json:"description"`
	Start       time.Time `json:"start" validate:"required"`
	End         time.Time `json:"end" validate:"required,gtfield=Start"`
	AssetID     *int32    `json:"asset_id,omitempty" validate:"omitempty,gt=0"`
	// UserID lets an administrator create an event for someone else.
	UserID int32 `json:"user_id,omitempty" validate:"omitempty,gt=0"`
}

func (b *eventBody) toEvent() *domain.Event {
	return &domain.Event{
		Title:       b.Title,
		Description: b.Description,
		Start:       b.Start,
		End:         b.End,
		AssetID:     b.AssetID,
		UserID:      b.UserID,
	}
}

func (h *eventHandler) create(w http.ResponseWriter, r *http.Request) {
	var body eventBody
	if err := decode(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	actor := actorFromRequest(r)
	e := body.toEvent()
	if e.UserID == 0 {
		e.UserID = actor.ID
	}
	if e.UserID != actor.ID && !actor.IsAdmin() {
		writeError(w, r, domain.NewForbidden("create event", "only administrators may create events for other users"))
		return
	}
	if err := h.events.Create(r.Context(), e); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (h *eventHandler) list(w http.ResponseWriter, r *http.Request) {
	actor := actorFromRequest(r)
	var (
		events []domain.Event
		err    error
	)
	if actor.IsAdmin() {
		events, err = h.events.List(r.Context())
	} else {
		events, err = h.events.ListByUser(r.Context(), actor.ID)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *eventHandler) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	e, err := h.events.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !e.CanBeManagedBy(actorFromRequest(r)) {
		writeError(w, r, domain.NewForbidden("get event", "event %d belongs to another user", id))
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (h *eventHandler) update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var body eventBody
	if err := decode(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	e := body.toEvent()
	e.ID = id
	if err := h.events.Update(r.Context(), actorFromRequest(r), e); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (h *eventHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.events.Delete(r.Context(), actorFromRequest(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
