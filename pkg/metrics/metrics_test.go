package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, g prometheus.Gatherer) string {
	t.Helper()
	rec := httptest.NewRecorder()
	Handler(g).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestNewRegistersOnGivenRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.DocsIndexedTotal.Add(3)
	m.SearchQueriesTotal.WithLabelValues("hit").Inc()
	m.BatchRecordsTotal.WithLabelValues("dev", "found").Inc()
	m.CacheHitsTotal.Inc()

	body := scrape(t, reg)
	assert.Contains(t, body, "docs_indexed_total 3")
	assert.Contains(t, body, `search_queries_total{result_type="hit"} 1`)
	assert.Contains(t, body, `batch_records_total{outcome="found",split="dev"} 1`)
	assert.Contains(t, body, "cache_hits_total 1")
}

func TestSeparateRegistriesDoNotCollide(t *testing.T) {
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}
