package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/iho/betledger/internal/infrastructure/metrics"
)

func metricsRouter(m *metrics.Metrics) http.Handler {
	reply := func(status int) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if status != 0 {
				w.WriteHeader(status)
			}
		}
	}

	r := chi.NewRouter()
	r.Use(Metrics(m))
	r.Get("/api/v1/entries/{id}", reply(0))
	r.Post("/api/v1/withdrawals/{id}/confirm", reply(http.StatusConflict))
	r.NotFound(reply(http.StatusNotFound))
	return r
}

func TestMetricsLabelsByRoutePattern(t *testing.T) {
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	router := metricsRouter(m)

	for _, id := range []string{"01A", "01B", "01C"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/entries/"+id, nil))
	}
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/withdrawals/w1/confirm", nil))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope/123", nil))

	assert.Equal(t, 3.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues(http.MethodGet, "/api/v1/entries/{id}", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues(http.MethodPost, "/api/v1/withdrawals/{id}/confirm", "409")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues(http.MethodGet, unmatchedRoute, "404")))
	assert.Equal(t, 3, testutil.CollectAndCount(m.HTTPRequests), "raw ids must not become label values")
	assert.Equal(t, 3, testutil.CollectAndCount(m.HTTPDuration))
	assert.Zero(t, testutil.ToFloat64(m.HTTPInFlight))
}

func TestRoutePatternWithoutRouter(t *testing.T) {
	assert.Equal(t, unmatchedRoute, routePattern(httptest.NewRequest(http.MethodGet, "/x", nil)))
}
