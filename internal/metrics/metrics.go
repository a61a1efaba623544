package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fapi"

// Acquisition kinds recorded by ObserveAcquire
const (
	AcquireWarm     = "warm"
	AcquireFallback = "fallback"
	AcquireFailed   = "failed"
)

// Ask request labels recorded by ObserveAsk
const (
	TransportSSE       = "sse"
	TransportWebSocket = "websocket"

	OutcomeOK        = "ok"
	OutcomeError     = "error"
	OutcomeAbandoned = "abandoned"
	OutcomeRejected  = "rejected"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	AskRequests         *prometheus.CounterVec
	SessionAcquisitions *prometheus.CounterVec
	ActiveSessions      prometheus.Gauge
	ReasoningDeltas     prometheus.Counter
	ScrapeDuration      prometheus.Histogram
	WarmPoolState       prometheus.Gauge
}

// New creates a metrics collector backed by its own registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		AskRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ask_requests_total",
				Help:      "Questions handled, by transport and outcome.",
			},
			[]string{"transport", "outcome"},
		),
		SessionAcquisitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "session_acquisitions_total",
				Help:      "Browser session acquisitions, by kind (warm, fallback, failed).",
			},
			[]string{"kind"},
		),
		ActiveSessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "sessions_active",
				Help:      "Browser sessions currently held by requests.",
			},
		),
		ReasoningDeltas: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reasoning_deltas_total",
				Help:      "Reasoning delta events emitted.",
			},
		),
		ScrapeDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "scrape_duration_seconds",
				Help:      "Time spent polling the upstream answer region.",
				Buckets:   []float64{1, 2.5, 5, 10, 20, 30, 60, 120, 300},
			},
		),
		WarmPoolState: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "warm_pool_state",
				Help:      "Warm browser state: 0 cold, 1 warming, 2 ready, 3 failed, 4 closed.",
			},
		),
	}
}

// Handler exposes the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveAsk(transport, outcome string) {
	if m == nil {
		return
	}
	m.AskRequests.WithLabelValues(transport, outcome).Inc()
}

func (m *Metrics) ObserveAcquire(kind string) {
	if m == nil {
		return
	}
	m.SessionAcquisitions.WithLabelValues(kind).Inc()
}

func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.ActiveSessions.Inc()
}

func (m *Metrics) SessionReleased() {
	if m == nil {
		return
	}
	m.ActiveSessions.Dec()
}

func (m *Metrics) ObserveDelta() {
	if m == nil {
		return
	}
	m.ReasoningDeltas.Inc()
}

func (m *Metrics) ObserveScrape(d time.Duration) {
	if m == nil {
		return
	}
	m.ScrapeDuration.Observe(d.Seconds())
}

func (m *Metrics) SetWarmState(state int) {
	if m == nil {
		return
	}
	m.WarmPoolState.Set(float64(state))
}
