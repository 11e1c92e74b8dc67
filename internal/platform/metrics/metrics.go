package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the portal.
type Metrics struct {
	StepRequests         *prometheus.CounterVec
	StepDuration         *prometheus.HistogramVec
	CacheMisses          *prometheus.CounterVec
	CollaboratorFailures *prometheus.CounterVec
	ChildFolds           *prometheus.CounterVec
	ReturnsSubmitted     *prometheus.CounterVec
	HTTPLatency          *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics with the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers the metrics with reg. Tests pass a fresh registry so
// repeated construction does not collide.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		StepRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_wizard_step_requests_total",
			Help: "Wizard step requests by flow, step and outcome",
		}, []string{"flow", "step", "outcome"}),
		StepDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "portal_wizard_step_duration_ms",
			Help:    "Latency of wizard step execution in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		}, []string{"flow", "step"}),
		CacheMisses: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_wizard_cache_misses_total",
			Help: "Steps that found no in-progress record for the session",
		}, []string{"flow"}),
		CollaboratorFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_wizard_collaborator_failures_total",
			Help: "Back-office collaborator calls that failed during a step",
		}, []string{"flow", "step"}),
		ChildFolds: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_wizard_child_folds_total",
			Help: "Sub-records merged into their parent record",
		}, []string{"flow"}),
		ReturnsSubmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_returns_submitted_total",
			Help: "Returns handed to the back office",
		}, []string{"tax"}),
		HTTPLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "portal_http_request_duration_ms",
			Help:    "HTTP request latency in milliseconds by route",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		}, []string{"route", "method", "status"}),
	}
}

// ObserveStep records one executed step.
func (m *Metrics) ObserveStep(flow, step, outcome string, d time.Duration) {
	m.StepRequests.WithLabelValues(flow, step, outcome).Inc()
	m.StepDuration.WithLabelValues(flow, step).Observe(float64(d.Milliseconds()))
}

func (m *Metrics) IncCacheMiss(flow string) {
	m.CacheMisses.WithLabelValues(flow).Inc()
}

func (m *Metrics) IncCollaboratorFailure(flow, step string) {
	m.CollaboratorFailures.WithLabelValues(flow, step).Inc()
}

func (m *Metrics) IncChildFold(flow string) {
	m.ChildFolds.WithLabelValues(flow).Inc()
}

func (m *Metrics) IncReturnSubmitted(tax string) {
	m.ReturnsSubmitted.WithLabelValues(tax).Inc()
}

// ObserveHTTP records one HTTP request.
func (m *Metrics) ObserveHTTP(route, method string, status int, d time.Duration) {
	m.HTTPLatency.WithLabelValues(route, method, strconv.Itoa(status)).Observe(float64(d.Milliseconds()))
}
