package http

import (
	"net/http"
	"time"

	"zephyrm-backend/internal/domain"
	"zephyrm-backend/internal/service"
)

type assetHandler struct {
	assets   service.AssetService
	requests service.RequestService
}

type assetBody struct {
	Title           string            `json:"title" validate:"required,max=200"`
	Category        string            `json:"category"`
	Description     string            `json:"description"`
	Location        string            `json:"location"`
	AcquisitionDate time.Time         `json:"acquisition_date"`
	TagID           *string           `json:"tag_id,omitempty" validate:"omitempty,min=1"`
	State           domain.AssetState `json:"state,omitempty" validate:"omitempty,oneof=FREE ON_LOAN UNDER_MAINTENANCE BROKEN"`
	UserID          *int32            `json:"user_id,omitempty" validate:"omitempty,gt=0"`
}

func (b *assetBody) toAsset() *domain.Asset {
	return &domain.Asset{
		Title:           b.Title,
		Category:        b.Category,
		Description:     b.Description,
		Location:        b.Location,
		AcquisitionDate: b.AcquisitionDate,
		TagID:           b.TagID,
		State:           b.State,
		UserID:          b.UserID,
	}
}

type assignBody struct {
	UserID int32 `json:"user_id" validate:"required,gt=0"`
}

type stateBody struct {
	State domain.AssetState `json:"state" validate:"required,oneof=FREE ON_LOAN UNDER_MAINTENANCE BROKEN"`
}

func (h *assetHandler) create(w http.ResponseWriter, r *http.Request) {
	var body assetBody
	if err := decode(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	a := body.toAsset()
	if err := h.assets.Create(r.Context(), a); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (h *assetHandler) list(w http.ResponseWriter, r *http.Request) {
	assets, err := h.assets.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, assets)
}

func (h *assetHandler) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	a, err := h.assets.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *assetHandler) update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var body assetBody
	if err := decode(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	in := body.toAsset()
	in.ID = id
	out, err := h.assets.Update(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *assetHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.assets.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *assetHandler) assign(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var body assignBody
	if err := decode(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	h.respond(w, r)(h.assets.Assign(r.Context(), id, body.UserID))
}

func (h *assetHandler) release(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.respond(w, r)(h.assets.Release(r.Context(), id))
}

func (h *assetHandler) setState(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var body stateBody
	if err := decode(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	h.respond(w, r)(h.assets.SetState(r.Context(), id, body.State))
}

// markReturned lets the current holder hand the asset back.
func (h *assetHandler) markReturned(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.respond(w, r)(h.requests.MarkReturned(r.Context(), id, actorFromRequest(r).ID))
}

func (h *assetHandler) respond(w http.ResponseWriter, r *http.Request) func(*domain.Asset, error) {
	return func(a *domain.Asset, err error) {
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}
