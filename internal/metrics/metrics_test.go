package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveFeedsHistogramAndMax(t *testing.T) {
	m := New()
	m.Observe("GET", "/api/account", 200, 10*time.Millisecond)
	m.Observe("GET", "/api/account", 200, 30*time.Millisecond)
	m.Observe("POST", "/api/register", 400, 5*time.Millisecond)

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	var series int
	for _, f := range families {
		if f.GetName() == requestsMetric {
			series = len(f.GetMetric())
		}
	}
	assert.Equal(t, 2, series)
	assert.InDelta(t, 0.03, m.max["GET /api/account 200"], 1e-9)
}

func TestSnapshotGroupsRequests(t *testing.T) {
	m := New()
	m.Observe("GET", "/api/account", 200, 10*time.Millisecond)
	m.Observe("GET", "/api/account", 200, 30*time.Millisecond)
	m.Observe("POST", "/api/register", 400, 5*time.Millisecond)

	snap, err := m.Snapshot()
	require.NoError(t, err)

	httpReqs := snap["http.server.requests"].(map[string]any)
	assert.Equal(t, 3.0, httpReqs["all"].(map[string]float64)["count"])
	perCode := httpReqs["percode"].(map[string]*requestStats)
	require.Contains(t, perCode, "200")
	assert.Equal(t, 2.0, perCode["200"].Count)
	assert.InDelta(t, 20.0, perCode["200"].Mean, 1e-6)
	assert.InDelta(t, 30.0, perCode["200"].Max, 1e-6)

	services := snap["services"].(map[string]map[string]*requestStats)
	require.Contains(t, services, "/api/register")
	assert.Equal(t, 1.0, services["/api/register"]["POST"].Count)

	assert.Contains(t, snap, "memory")
	assert.Contains(t, snap, "garbageCollector")
	procs := snap["processMetrics"].(map[string]float64)
	assert.Contains(t, procs, "go_goroutines")
}

func TestHandlerExposesPrometheusText(t *testing.T) {
	m := New()
	m.Observe("GET", "/management/info", 200, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/management/prometheus", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `http_server_requests_seconds_count{method="GET",status="200",uri="/management/info"} 1`))
	assert.Contains(t, body, "go_goroutines")
}
