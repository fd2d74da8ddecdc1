// internal/metrics/metrics_test.go
package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Counters(t *testing.T) {
	r := New()

	r.ObserveOracleRequest("refiner", nil)
	r.ObserveOracleRequest("refiner", errors.New("boom"))
	r.ObserveToolCall("read_file", true, false)
	r.ObserveToolCall("read_file", false, true)
	r.ObserveAttempt("success")
	r.ObserveAttempt("timeout")
	r.ObserveAttempt("timeout")

	assert.Equal(t, 1.0, testutil.ToFloat64(r.oracleRequests.WithLabelValues("refiner", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.oracleRequests.WithLabelValues("refiner", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.toolCalls.WithLabelValues("read_file", "skipped")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.validationAttempts.WithLabelValues("timeout")))
}

func TestRecorder_NilIsNoop(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.ObserveOracleRequest("planner", nil)
		r.ObserveToolCall("x", true, false)
		r.ObserveAttempt("success")
		r.ObserveScenario(true, time.Second)
	})
	assert.NoError(t, r.WriteTextfile(filepath.Join(t.TempDir(), "never.prom")))
	assert.Nil(t, r.Registry())
}

func TestRecorder_WriteTextfile(t *testing.T) {
	r := New()
	r.ObserveAttempt("success")
	r.ObserveScenario(true, 3*time.Second)

	path := filepath.Join(t.TempDir(), "metrics.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `uiforge_validation_attempts_total{outcome="success"} 1`)
	assert.Contains(t, string(data), "uiforge_validation_scenario_duration_seconds_count")
}
