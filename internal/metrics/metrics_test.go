package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware_UsesRouteTemplate(t *testing.T) {
	m := New()
	r := mux.NewRouter()
	r.Use(m.Middleware)
	r.HandleFunc("/assets/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"1", "2", "3"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/assets/"+id, nil))
		require.Equal(t, http.StatusNotFound, rec.Code)
	}

	assert.Equal(t, 3.0, testutil.ToFloat64(m.reqTotal.WithLabelValues("GET", "/assets/{id}", "404")))
}

func TestCounters(t *testing.T) {
	m := New()
	m.RequestDecided("DENIED")
	m.ReminderFired("sent")
	m.ReminderFired("sent")
	m.ConnectionOpened()
	m.ConnectionOpened()
	m.ConnectionClosed()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestDecisions.WithLabelValues("DENIED")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.remindersFired.WithLabelValues("sent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.realtimeConnections))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RequestDecided("APPROVED")
		m.ChannelDropped()
		m.MaintenanceRun("audit", "ok")
	})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
