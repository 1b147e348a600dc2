package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/persistorai/auditscope/internal/metrics"
)

// TruncatedHeader marks a response built from a fetch that hit the page cap.
const TruncatedHeader = "X-Results-Truncated"

// PrometheusMiddleware records request duration, count and concurrency,
// labelled by route pattern. Scrapes of metricsPath are not recorded.
func PrometheusMiddleware(metricsPath string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == metricsPath {
			c.Next()
			return
		}

		metrics.RequestsInFlight.Inc()
		defer metrics.RequestsInFlight.Dec()

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		metrics.RequestDuration.WithLabelValues(c.Request.Method, route, status).Observe(time.Since(start).Seconds())
		metrics.RequestsTotal.WithLabelValues(c.Request.Method, route, status).Inc()
		if c.Writer.Header().Get(TruncatedHeader) != "" {
			metrics.TruncatedResponses.WithLabelValues(route).Inc()
		}
	}
}
