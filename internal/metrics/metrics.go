// internal/metrics/metrics.go
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "uiforge"

// Recorder owns the counters of one pipeline run. A nil *Recorder is valid and
// records nothing, so components can take one unconditionally.
type Recorder struct {
	registry *prometheus.Registry

	oracleRequests     *prometheus.CounterVec
	toolCalls          *prometheus.CounterVec
	validationAttempts *prometheus.CounterVec
	scenarioDuration   *prometheus.HistogramVec
}

// New creates a Recorder backed by its own registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		// Labels: component (analysis, planner, refiner), outcome (ok, error)
		oracleRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "oracle",
			Name:      "requests_total",
			Help:      "Oracle requests issued, by component and outcome.",
		}, []string{"component", "outcome"}),
		// Labels: tool, outcome (ok, error, skipped)
		toolCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "tool_calls_total",
			Help:      "Tool calls requested by the oracle.",
		}, []string{"tool", "outcome"}),
		// Labels: outcome (success, or the failure kind)
		validationAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "validation",
			Name:      "attempts_total",
			Help:      "Scenario validation attempts by outcome.",
		}, []string{"outcome"}),
		scenarioDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "validation",
			Name:      "scenario_duration_seconds",
			Help:      "Wall time spent validating one scenario.",
			Buckets:   []float64{1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"validated"}),
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

func (r *Recorder) ObserveOracleRequest(component string, err error) {
	if r == nil {
		return
	}
	r.oracleRequests.WithLabelValues(component, outcome(err == nil)).Inc()
}

// ObserveToolCall counts one tool call. skipped marks calls refused because the
// budget ran out.
func (r *Recorder) ObserveToolCall(tool string, ok, skipped bool) {
	if r == nil {
		return
	}
	label := outcome(ok)
	if skipped {
		label = "skipped"
	}
	r.toolCalls.WithLabelValues(tool, label).Inc()
}

func (r *Recorder) ObserveAttempt(outcome string) {
	if r == nil {
		return
	}
	r.validationAttempts.WithLabelValues(outcome).Inc()
}

func (r *Recorder) ObserveScenario(validated bool, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.scenarioDuration.WithLabelValues(fmt.Sprintf("%t", validated)).Observe(elapsed.Seconds())
}

// WriteTextfile writes the current values in the text exposition format, for
// the node exporter textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile %s: %w", path, err)
	}
	return nil
}

func outcome(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
