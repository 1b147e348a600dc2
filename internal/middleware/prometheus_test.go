package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/persistorai/auditscope/internal/metrics"
	"github.com/persistorai/auditscope/internal/middleware"
)

func TestPrometheusMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(middleware.PrometheusMiddleware("/metrics"))
	r.GET("/api/v1/audit-logs", func(c *gin.Context) {
		c.Header(middleware.TruncatedHeader, "true")
		c.Status(http.StatusOK)
	})
	r.GET("/metrics", func(c *gin.Context) { c.Status(http.StatusOK) })

	served := metrics.RequestsTotal.WithLabelValues(http.MethodGet, "/api/v1/audit-logs", "200")
	scrapes := metrics.RequestsTotal.WithLabelValues(http.MethodGet, "/metrics", "200")
	truncated := metrics.TruncatedResponses.WithLabelValues("/api/v1/audit-logs")
	servedBefore, scrapesBefore, truncBefore := testutil.ToFloat64(served), testutil.ToFloat64(scrapes), testutil.ToFloat64(truncated)

	for _, path := range []string{"/api/v1/audit-logs?scope=org&id=o1", "/metrics"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, http.NoBody))
	}

	if got := testutil.ToFloat64(served); got != servedBefore+1 {
		t.Errorf("requests_total = %v, want %v", got, servedBefore+1)
	}
	if got := testutil.ToFloat64(truncated); got != truncBefore+1 {
		t.Errorf("truncated_responses_total = %v, want %v", got, truncBefore+1)
	}
	if got := testutil.ToFloat64(scrapes); got != scrapesBefore {
		t.Errorf("metrics scrapes should not be recorded, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.RequestsInFlight); got != 0 {
		t.Errorf("in-flight gauge = %v after requests finished", got)
	}
}
