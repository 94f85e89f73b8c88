package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, r *Registry) map[string]*dto.MetricFamily {
	t.Helper()
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/plain")

	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(rr.Body)
	require.NoError(t, err, "parse exposition")
	return mfs
}

func TestRegistry_CountsBatches(t *testing.T) {
	live := 2
	r := New(func() int { return live })
	r.ObserveBatch("http", 100, 3)
	r.ObserveBatch("http", 50, 0)
	r.ObserveBatch("mqtt", 10, 1)

	mfs := scrape(t, r)

	batches := mfs[nameBatches]
	require.NotNil(t, batches, "%s missing", nameBatches)
	byTransport := map[string]float64{}
	for _, m := range batches.GetMetric() {
		byTransport[m.GetLabel()[0].GetValue()] = m.GetCounter().GetValue()
	}
	assert.Equal(t, map[string]float64{"http": 2, "mqtt": 1}, byTransport)
	assert.Equal(t, 160.0, mfs[nameAccepted].GetMetric()[0].GetCounter().GetValue(), "accepted")
	assert.Equal(t, 4.0, mfs[nameRejected].GetMetric()[0].GetCounter().GetValue(), "rejected")
	assert.Equal(t, 2.0, mfs[nameSources].GetMetric()[0].GetGauge().GetValue(), "live sources")
}

func TestRegistry_EmptyAndNoGauge(t *testing.T) {
	r := New(nil)
	mfs := scrape(t, r)
	assert.NotContains(t, mfs, nameBatches, "absent before the first batch")
	assert.NotContains(t, mfs, nameSources, "absent without a sampler")
	assert.Zero(t, mfs[nameAccepted].GetMetric()[0].GetCounter().GetValue())
}

func TestRegistry_MethodNotAllowed(t *testing.T) {
	rr := httptest.NewRecorder()
	New(nil).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/metrics", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}
