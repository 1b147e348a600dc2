package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/auditscope/internal/middleware"
)

// RouterDeps holds all dependencies needed by the router.
type RouterDeps struct {
	Log         *logrus.Logger
	Reports     ReportBuilder
	Orgs        OrgLister
	Config      ConfigStore
	DB          HealthChecker // optional
	Defaults    DefaultsFunc
	CORSOrigins []string
	Version     string
	Upstream    string
}

const (
	maxBodySize = 64 << 10 // 64 KB
	metricsPath = "/metrics"
)

// Per-IP limits. Audit-log and org requests fan out to the upstream API
// and share its quota, so they get a tighter bucket of their own.
var (
	apiLimit      = middleware.RateLimit{Name: "api", PerSecond: 5, Burst: 10}
	upstreamLimit = middleware.RateLimit{Name: "upstream", PerSecond: 0.5, Burst: 3}
)

// setupMiddleware configures all middleware on the Gin engine.
func setupMiddleware(ctx context.Context, r *gin.Engine, deps *RouterDeps) {
	r.SetTrustedProxies(nil) //nolint:errcheck // nil always succeeds.
	r.Use(middleware.RequestID(deps.Log))
	r.Use(ginLogger(deps.Log))
	r.Use(gin.Recovery())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.MaxBodySize(maxBodySize))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     deps.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type"},
		ExposeHeaders:    []string{TruncatedHeader, middleware.RequestIDHeader, "Content-Disposition"},
		MaxAge:           1 * time.Hour,
		AllowCredentials: false,
	}))
	r.Use(middleware.NewRateLimiter(ctx, apiLimit).Handler())
	r.Use(middleware.PrometheusMiddleware(metricsPath))

	r.GET(metricsPath, gin.WrapH(promhttp.Handler()))
}

// registerRoutes sets up all API route handlers.
func registerRoutes(ctx context.Context, r *gin.Engine, deps *RouterDeps) {
	log := deps.Log

	health := NewHealthHandler(deps.DB, log, deps.Version, deps.Upstream)
	cfg := NewConfigHandler(deps.Config, log)
	audit := NewAuditHandler(deps.Reports, deps.Defaults, log)
	orgs := NewOrgHandler(deps.Orgs, log)

	// Configuration lives outside the versioned prefix for the config UI.
	r.GET("/api/config", cfg.Get)
	r.POST("/api/config", cfg.Save)

	v1 := r.Group("/api/v1")
	v1.GET("/health", health.Liveness)

	upstream := v1.Group("", middleware.NewRateLimiter(ctx, upstreamLimit).Handler())
	upstream.GET("/audit-logs", audit.List)
	upstream.GET("/audit-logs/export", audit.Export)
	upstream.GET("/orgs", orgs.List)
}

// NewRouter creates and configures the Gin engine with all middleware and routes.
func NewRouter(ctx context.Context, deps *RouterDeps) http.Handler {
	r := gin.New()
	setupMiddleware(ctx, r, deps)
	registerRoutes(ctx, r, deps)

	return r
}

func ginLogger(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		middleware.Logger(c, log).WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
			"client":   c.ClientIP(),
		}).Info("request")
	}
}
