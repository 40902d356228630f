package http

import (
	"net/http"

	"zephyrm-backend/internal/domain"
	"zephyrm-backend/internal/service"
)

type notificationHandler struct {
	notes service.NotificationService
}

func (h *notificationHandler) list(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if actor := actorFromRequest(r); actor.ID != userID && !actor.IsAdmin() {
		writeError(w, r, domain.NewForbidden("list notifications", "notifications of user %d are not yours", userID))
		return
	}
	notes, err := h.notes.List(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, notes)
}

func (h *notificationHandler) markRead(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.notes.MarkRead(r.Context(), id, actorFromRequest(r).ID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *notificationHandler) markAllRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.notes.MarkAllRead(r.Context(), actorFromRequest(r).ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"updated": n})
}

func (h *notificationHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.notes.Delete(r.Context(), id, actorFromRequest(r).ID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
