package monitoring

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics of one broker instance.
// Each instance owns its registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Pending request metrics
	PendingRequests *prometheus.GaugeVec
	EnqueuedTotal   *prometheus.CounterVec
	DedupedTotal    *prometheus.CounterVec
	DecisionsTotal  *prometheus.CounterVec
	WaitersResolved *prometheus.HistogramVec

	// Channel metrics
	DispatchTotal    *prometheus.CounterVec
	DispatchDuration *prometheus.HistogramVec

	// Subscription metrics
	SubscriptionsActive prometheus.Gauge
	PushesTotal         *prometheus.CounterVec

	// Collaborator metrics
	CollaboratorCalls    *prometheus.CounterVec
	CollaboratorDuration *prometheus.HistogramVec
	BreakerState         *prometheus.GaugeVec

	// Transport metrics
	PortsActive *prometheus.GaugeVec
	FramesTotal *prometheus.CounterVec

	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot MetricsSnapshot
	mu       sync.RWMutex
}

// MetricsSnapshot holds current metric values for JSON API
type MetricsSnapshot struct {
	Dispatches          int64   `json:"dispatches"`
	DispatchErrors      int64   `json:"dispatchErrors"`
	ActivePorts         int64   `json:"activePorts"`
	ActiveSubscriptions int64   `json:"activeSubscriptions"`
	Pending             int64   `json:"pending"`
	UptimeSeconds       float64 `json:"uptimeSeconds"`
}

// NewMetrics creates a new metrics collector with its own registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		// HTTP metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "broker_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "broker_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		// Pending request metrics
		PendingRequests: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "broker_requests_pending",
				Help: "Number of requests awaiting a decision",
			},
			[]string{"kind"},
		),
		EnqueuedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "broker_requests_enqueued_total",
				Help: "Total number of requests enqueued",
			},
			[]string{"kind"},
		),
		DedupedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "broker_requests_deduplicated_total",
				Help: "Total number of requests that joined an equivalent pending request",
			},
			[]string{"kind"},
		),
		DecisionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "broker_decisions_total",
				Help: "Total number of resolved requests by outcome",
			},
			[]string{"kind", "outcome"},
		),
		WaitersResolved: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "broker_request_waiters",
				Help:    "Number of callers answered by one resolved request",
				Buckets: []float64{1, 2, 3, 5, 10, 25},
			},
			[]string{"kind"},
		),

		// Channel metrics
		DispatchTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "broker_dispatch_total",
				Help: "Total number of dispatched envelopes by channel and result code",
			},
			[]string{"channel", "code"},
		),
		DispatchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "broker_dispatch_duration_seconds",
				Help:    "Time from envelope receipt to response, including user decisions",
				Buckets: []float64{.001, .01, .1, 1, 5, 15, 60, 300, 900},
			},
			[]string{"channel"},
		),

		// Subscription metrics
		SubscriptionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "broker_subscriptions_active",
				Help: "Number of live subscriptions",
			},
		),
		PushesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "broker_pushes_total",
				Help: "Total number of subscription pushes written",
			},
			[]string{"kind"},
		),

		// Collaborator metrics
		CollaboratorCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "broker_collaborator_calls_total",
				Help: "Total number of collaborator calls",
			},
			[]string{"collaborator", "status"},
		),
		CollaboratorDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "broker_collaborator_duration_seconds",
				Help:    "Collaborator call duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"collaborator"},
		),
		BreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "broker_breaker_state",
				Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
			},
			[]string{"name"},
		),

		// Transport metrics
		PortsActive: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "broker_ports_active",
				Help: "Number of connected ports",
			},
			[]string{"transport", "trust"},
		),
		FramesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "broker_frames_total",
				Help: "Total number of transport frames",
			},
			[]string{"transport", "direction"},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "broker_uptime_seconds",
			Help: "Broker uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Registry returns the registry backing this instance
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler exposes the registry in Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordDispatch records one dispatched envelope; code is empty on success
func (m *Metrics) RecordDispatch(channel, code string, duration time.Duration) {
	if code == "" {
		code = "ok"
	}
	m.DispatchTotal.WithLabelValues(channel, code).Inc()
	m.DispatchDuration.WithLabelValues(channel).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.Dispatches++
	if code != "ok" {
		m.snapshot.DispatchErrors++
	}
	m.mu.Unlock()
}

// RecordEnqueue records a new or deduplicated request of kind
func (m *Metrics) RecordEnqueue(kind string, deduplicated bool) {
	if deduplicated {
		m.DedupedTotal.WithLabelValues(kind).Inc()
		return
	}
	m.EnqueuedTotal.WithLabelValues(kind).Inc()
}

// RecordDecision records how a request of kind was resolved
func (m *Metrics) RecordDecision(kind, outcome string) {
	m.DecisionsTotal.WithLabelValues(kind, outcome).Inc()
}

// RecordWaiters records how many callers one resolution answered
func (m *Metrics) RecordWaiters(kind string, waiters int) {
	m.WaitersResolved.WithLabelValues(kind).Observe(float64(waiters))
}

// SetPending sets the number of pending requests of kind
func (m *Metrics) SetPending(kind string, count int) {
	m.PendingRequests.WithLabelValues(kind).Set(float64(count))
}

// SetSubscriptionsActive sets the number of live subscriptions
func (m *Metrics) SetSubscriptionsActive(count int) {
	m.SubscriptionsActive.Set(float64(count))
	m.mu.Lock()
	m.snapshot.ActiveSubscriptions = int64(count)
	m.mu.Unlock()
}

// RecordPush records a subscription push for kind
func (m *Metrics) RecordPush(kind string) {
	m.PushesTotal.WithLabelValues(kind).Inc()
}

// RecordCollaboratorCall records a collaborator call
func (m *Metrics) RecordCollaboratorCall(collaborator, status string, duration time.Duration) {
	m.CollaboratorCalls.WithLabelValues(collaborator, status).Inc()
	m.CollaboratorDuration.WithLabelValues(collaborator).Observe(duration.Seconds())
}

// SetBreakerState records a breaker state as its numeric value
func (m *Metrics) SetBreakerState(name string, state int) {
	m.BreakerState.WithLabelValues(name).Set(float64(state))
}

// PortOpened increments the connected port gauge
func (m *Metrics) PortOpened(transport string, trusted bool) {
	m.PortsActive.WithLabelValues(transport, trustLabel(trusted)).Inc()
	m.mu.Lock()
	m.snapshot.ActivePorts++
	m.mu.Unlock()
}

// PortClosed decrements the connected port gauge
func (m *Metrics) PortClosed(transport string, trusted bool) {
	m.PortsActive.WithLabelValues(transport, trustLabel(trusted)).Dec()
	m.mu.Lock()
	m.snapshot.ActivePorts--
	m.mu.Unlock()
}

// RecordFrame records one frame read ("in") or written ("out")
func (m *Metrics) RecordFrame(transport, direction string) {
	m.FramesTotal.WithLabelValues(transport, direction).Inc()
}

// Snapshot returns the current JSON-friendly values.
// pending is supplied by the caller since the stores own that number.
func (m *Metrics) Snapshot(pending int) MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := m.snapshot
	s.Pending = int64(pending)
	s.UptimeSeconds = time.Since(m.startTime).Seconds()
	return s
}

func trustLabel(trusted bool) string {
	if trusted {
		return "trusted"
	}
	return "untrusted"
}
