package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "zephyrm"

// Metrics holds all application collectors on a private registry. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP
	reqTotal   *prometheus.CounterVec
	reqLatency *prometheus.HistogramVec

	// Workflow
	requestDecisions *prometheus.CounterVec
	assetTransitions *prometheus.CounterVec

	// Reminders
	remindersScheduled prometheus.Counter
	remindersFired     *prometheus.CounterVec
	remindersPending   prometheus.Gauge

	// Realtime
	realtimeConnections prometheus.Gauge
	realtimeDelivered   prometheus.Counter
	realtimeDropped     prometheus.Counter

	// Maintenance
	maintenanceRuns *prometheus.CounterVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	f := promauto.With(registry)

	return &Metrics{
		registry: registry,
		reqTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests",
		}, []string{"method", "path", "status"}),
		reqLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		requestDecisions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "request_decisions_total",
			Help:      "Request outcomes by final status",
		}, []string{"status"}),
		assetTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "asset_transitions_total",
			Help:      "Applied asset state transitions",
		}, []string{"event", "result"}),
		remindersScheduled: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_scheduled_total",
			Help:      "Reminder jobs created",
		}),
		remindersFired: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_fired_total",
			Help:      "Reminder jobs processed by outcome",
		}, []string{"outcome"}),
		remindersPending: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reminders_pending",
			Help:      "Reminder jobs still scheduled at last check",
		}),
		realtimeConnections: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "realtime_connections",
			Help:      "Open realtime channels",
		}),
		realtimeDelivered: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "realtime_messages_delivered_total",
			Help:      "Messages enqueued to realtime channels",
		}),
		realtimeDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "realtime_channels_dropped_total",
			Help:      "Channels closed because their send buffer was full",
		}),
		maintenanceRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "maintenance_runs_total",
			Help:      "Maintenance job runs by job and status",
		}, []string{"job", "status"}),
	}
}

// Handler returns an http.Handler that serves Prometheus metrics
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the private registry for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Middleware records request count and latency labelled by the mux route
// template, so path parameters do not explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, code: http.StatusOK}

		next.ServeHTTP(rw, r)

		path := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				path = tpl
			}
		}
		m.reqTotal.WithLabelValues(r.Method, path, strconv.Itoa(rw.code)).Inc()
		m.reqLatency.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func (m *Metrics) RequestDecided(status string) {
	if m == nil {
		return
	}
	m.requestDecisions.WithLabelValues(status).Inc()
}

func (m *Metrics) AssetTransition(event, result string) {
	if m == nil {
		return
	}
	m.assetTransitions.WithLabelValues(event, result).Inc()
}

func (m *Metrics) ReminderScheduled() {
	if m == nil {
		return
	}
	m.remindersScheduled.Inc()
}

func (m *Metrics) ReminderFired(outcome string) {
	if m == nil {
		return
	}
	m.remindersFired.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RemindersPending(n int) {
	if m == nil {
		return
	}
	m.remindersPending.Set(float64(n))
}

func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.realtimeConnections.Inc()
}

func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.realtimeConnections.Dec()
}

func (m *Metrics) MessageDelivered() {
	if m == nil {
		return
	}
	m.realtimeDelivered.Inc()
}

func (m *Metrics) ChannelDropped() {
	if m == nil {
		return
	}
	m.realtimeDropped.Inc()
}

func (m *Metrics) MaintenanceRun(job, status string) {
	if m == nil {
		return
	}
	m.maintenanceRuns.WithLabelValues(job, status).Inc()
}

// statusRecorder captures the HTTP status code for metrics
type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.code = code
	sr.ResponseWriter.WriteHeader(code)
}

// Hijack lets websocket upgrades pass through the recorder.
func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := sr.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	sr.code = http.StatusSwitchingProtocols
	return h.Hijack()
}
