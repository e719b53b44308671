// Package metrics defines the Prometheus collectors for tool dispatch and
// orchestration runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups every collector the service exports.
// All methods are safe to call on a nil *Metrics.
type Metrics struct {
	toolInvocations  *prometheus.CounterVec
	toolDuration     *prometheus.HistogramVec
	rateLimitDenials *prometheus.CounterVec
	modelCalls       *prometheus.CounterVec
	runs             *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		toolInvocations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pharmassist_tool_invocations_total",
				Help: "Tool invocations by tool and outcome",
			},
			[]string{"tool", "outcome"},
		),
		toolDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pharmassist_tool_duration_seconds",
				Help:    "Tool execution latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"tool"},
		),
		rateLimitDenials: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pharmassist_rate_limit_denials_total",
				Help: "Tool invocations denied by the rate limiter",
			},
			[]string{"tool"},
		),
		modelCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pharmassist_model_calls_total",
				Help: "Streaming model requests issued",
			},
			[]string{"provider"},
		),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pharmassist_runs_total",
				Help: "Orchestration runs by terminal outcome",
			},
			[]string{"outcome"},
		),
	}

	for _, c := range []prometheus.Collector{m.toolInvocations, m.toolDuration, m.rateLimitDenials, m.modelCalls, m.runs} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveTool records one executed tool invocation.
func (m *Metrics) ObserveTool(tool, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.toolInvocations.WithLabelValues(tool, outcome).Inc()
	m.toolDuration.WithLabelValues(tool).Observe(elapsed.Seconds())
}

// RateLimited records a denied invocation.
func (m *Metrics) RateLimited(tool string) {
	if m == nil {
		return
	}
	m.rateLimitDenials.WithLabelValues(tool).Inc()
}

// ModelCall records one streaming model request.
func (m *Metrics) ModelCall(provider string) {
	if m == nil {
		return
	}
	m.modelCalls.WithLabelValues(provider).Inc()
}

// RunFinished records the terminal outcome of an orchestration run.
func (m *Metrics) RunFinished(outcome string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(outcome).Inc()
}
