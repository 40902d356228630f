// Package http exposes the lending workflow over REST and the realtime hub
// over websocket.
package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"zephyrm-backend/internal/metrics"
	"zephyrm-backend/internal/security"
	"zephyrm-backend/internal/service"
)

// Dependencies wires the router. WebSocket and Metrics may be nil.
type Dependencies struct {
	Assets        service.AssetService
	Requests      service.RequestService
	Events        service.EventService
	Notifications service.NotificationService
	Tokens        security.TokenManager
	Metrics       *metrics.Metrics
	WebSocket     http.Handler

	RateLimitRPS   float64
	RateLimitBurst int
}

// NewRouter builds the full route table with its middleware chain.
func NewRouter(d Dependencies) *mux.Router {
	r := mux.NewRouter()
	r.Use(RequestID, Logging, d.Metrics.Middleware, RateLimit(d.RateLimitRPS, d.RateLimitBurst))
	r.Use(NewAuthMiddleware(d.Tokens).Handler)

	r.HandleFunc("/health", health).Methods(http.MethodGet)
	r.Handle("/metrics", d.Metrics.Handler()).Methods(http.MethodGet)
	if d.WebSocket != nil {
		r.Handle("/ws", d.WebSocket).Methods(http.MethodGet)
	}

	rh := &requestHandler{requests: d.Requests}
	r.HandleFunc("/requests", rh.create).Methods(http.MethodPost)
	r.HandleFunc("/requests", rh.list).Methods(http.MethodGet)
	r.HandleFunc("/requests/{id}", rh.get).Methods(http.MethodGet)
	r.HandleFunc("/requests/{id}", rh.decide).Methods(http.MethodPut)
	r.HandleFunc("/requests/{id}", rh.delete).Methods(http.MethodDelete)

	ah := &assetHandler{assets: d.Assets, requests: d.Requests}
	r.HandleFunc("/assets", ah.create).Methods(http.MethodPost)
	r.HandleFunc("/assets", ah.list).Methods(http.MethodGet)
	r.HandleFunc("/assets/assign/{id}", ah.assign).Methods(http.MethodPut)
	r.HandleFunc("/assets/release/{id}", ah.release).Methods(http.MethodPut)
	r.HandleFunc("/assets/state/{id}", ah.setState).Methods(http.MethodPut)
	r.HandleFunc("/assets/return/{id}", ah.markReturned).Methods(http.MethodPut)
	r.HandleFunc("/assets/{id}", ah.get).Methods(http.MethodGet)
	r.HandleFunc("/assets/{id}", ah.update).Methods(http.MethodPut)
	r.HandleFunc("/assets/{id}", ah.delete).Methods(http.MethodDelete)

	eh := &eventHandler{events: d.Events}
	r.HandleFunc("/events", eh.create).Methods(http.MethodPost)
	r.HandleFunc("/events", eh.list).Methods(http.MethodGet)
	r.HandleFunc("/events/{id}", eh.get).Methods(http.MethodGet)
	r.HandleFunc("/events/{id}", eh.update).Methods(http.MethodPut)
	r.HandleFunc("/events/{id}", eh.delete).Methods(http.MethodDelete)

	nh := &notificationHandler{notes: d.Notifications}
	r.HandleFunc("/notifications/read", nh.markAllRead).Methods(http.MethodPut)
	r.HandleFunc("/notifications/read/{id}", nh.markRead).Methods(http.MethodPut)
	r.HandleFunc("/notifications/{userId}", nh.list).Methods(http.MethodGet)
	r.HandleFunc("/notifications/{id}", nh.delete).Methods(http.MethodDelete)

	return r
}

func health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
