package http

import (
	"net/http"

	"zephyrm-backend/internal/domain"
	"zephyrm-backend/internal/service"
)

type requestHandler struct {
	requests service.RequestService
}

type createRequestBody struct {
	Title      string `json:"title" validate:"required,max=200"`
	Motivation string `json:"motivation" validate:"required"`
	AssetID    int32  `json:"asset_id" validate:"required,gt=0"`
	// UserID lets an administrator file a request on someone's behalf.
	UserID int32 `json:"user_id,omitempty" validate:"omitempty,gt=0"`
}

type decideRequestBody struct {
	Status  domain.RequestStatus `json:"status" validate:"required,oneof=APPROVED DENIED"`
	AssetID int32                `json:"asset_id,omitempty" validate:"omitempty,gt=0"`
	UserID  int32                `json:"user_id,omitempty" validate:"omitempty,gt=0"`
	Motive  string               `json:"motive,omitempty"`
}

func (h *requestHandler) create(w http.ResponseWriter, r *http.Request) {
	var body createRequestBody
	if err := decode(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	actor := actorFromRequest(r)
	userID := actor.ID
	if body.UserID != 0 && body.UserID != actor.ID {
		if !actor.IsAdmin() {
			writeError(w, r, domain.NewForbidden("create request", "only administrators may file requests for other users"))
			return
		}
		userID = body.UserID
	}

	req, err := h.requests.CreateRequest(r.Context(), userID, body.AssetID, body.Title, body.Motivation)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

func (h *requestHandler) list(w http.ResponseWriter, r *http.Request) {
	var filter domain.RequestFilter
	var err error
	if filter.UserID, err = queryID(r, "user_id"); err != nil {
		writeError(w, r, err)
		return
	}
	if filter.AssetID, err = queryID(r, "asset_id"); err != nil {
		writeError(w, r, err)
		return
	}
	if s := r.URL.Query().Get("status"); s != "" {
		filter.Status = domain.RequestStatus(s)
	}

	// Users only ever see their own requests.
	actor := actorFromRequest(r)
	if !actor.IsAdmin() {
		filter.UserID = &actor.ID
	}

	reqs, err := h.requests.List(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reqs)
}

func (h *requestHandler) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	req, err := h.requests.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if actor := actorFromRequest(r); !actor.IsAdmin() && req.UserID != actor.ID {
		writeError(w, r, domain.NewForbidden("get request", "request %d belongs to another user", id))
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// decide approves or denies. An approval that finds the asset unavailable
// still answers 200 with the request in DENIED status.
func (h *requestHandler) decide(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var body decideRequestBody
	if err := decode(r, &body); err != nil {
		writeError(w, r, err)
		return
	}

	var req *domain.Request
	if body.Status == domain.RequestStatusApproved {
		req, err = h.requests.Approve(r.Context(), id, body.AssetID, body.UserID)
	} else {
		req, err = h.requests.Deny(r.Context(), id, body.Motive)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (h *requestHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.requests.Delete(r.Context(), id, actorFromRequest(r).ID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
