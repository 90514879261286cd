package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveOutcome(t *testing.T) {
	m, err := New(prometheus.NewRegistry())
	require.NoError(t, err)

	m.ObserveOutcome(OutcomeItemized)
	m.ObserveOutcome(OutcomeItemized)
	m.ObserveOutcome(OutcomeParseFailure)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.AnalysisRequests.WithLabelValues(OutcomeItemized)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AnalysisRequests.WithLabelValues(OutcomeParseFailure)))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveOutcome(OutcomeEmpty)
		m.ObserveProvider("gemini", time.Second)
	})
}

func TestDoubleRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)
	_, err = New(reg)
	assert.Error(t, err)
}

func TestHandler(t *testing.T) {
	m, err := New(nil)
	require.NoError(t, err)
	m.ObserveProvider("gemini", 3*time.Second)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "calorie_provider_latency_seconds_bucket")
}
