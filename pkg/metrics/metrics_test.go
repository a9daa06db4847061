package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	return rec.Body.String()
}

func TestCounters(t *testing.T) {
	m := New()

	m.ObservePrediction("spam", time.Millisecond)
	m.ObservePrediction("spam", time.Millisecond)
	m.ObservePrediction("ham", time.Millisecond)
	m.PredictionError()
	m.CacheLookup("miss")
	m.ObserveBatch(8, 2)

	body := scrape(t, m)
	for _, line := range []string{
		`zpam_predictions_total{label="spam"} 2`,
		`zpam_predictions_total{label="ham"} 1`,
		`zpam_prediction_errors_total 1`,
		`zpam_prediction_cache_lookups_total{result="miss"} 1`,
		`zpam_batch_rows_total{outcome="included"} 8`,
		`zpam_batch_rows_total{outcome="excluded"} 2`,
		`zpam_batches_total 1`,
		`zpam_prediction_duration_seconds_count 3`,
	} {
		assert.Contains(t, body, line)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObservePrediction("spam", time.Millisecond)
		m.PredictionError()
		m.CacheLookup("hit")
		m.ObserveBatch(1, 1)
	})
}

func TestRegistriesAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.ObservePrediction("ham", time.Millisecond)

	assert.Contains(t, scrape(t, a), `zpam_predictions_total{label="ham"} 1`)
	assert.NotContains(t, scrape(t, b), `zpam_predictions_total{label="ham"}`)
}
