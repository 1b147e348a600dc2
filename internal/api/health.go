// Package api provides the HTTP handlers of the auditscope server.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// HealthHandler serves the health endpoint.
type HealthHandler struct {
	db        HealthChecker
	log       *logrus.Logger
	version   string
	upstream  string
	startTime time.Time
}

// NewHealthHandler creates a HealthHandler. db may be nil when no database
// sink is configured.
func NewHealthHandler(db HealthChecker, log *logrus.Logger, version, upstream string) *HealthHandler {
	return &HealthHandler{
		db:        db,
		log:       log,
		version:   version,
		upstream:  upstream,
		startTime: time.Now(),
	}
}

// healthResponse is the JSON payload returned by the health endpoint.
type healthResponse struct {
	Status        string  `json:"status"`
	Version       string  `json:"version"`
	Upstream      string  `json:"upstream"`
	Database      string  `json:"database"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// Liveness handles GET /api/v1/health.
func (h *HealthHandler) Liveness(c *gin.Context) {
	resp := healthResponse{
		Status:        "ok",
		Version:       h.version,
		Upstream:      h.upstream,
		Database:      "not_configured",
		UptimeSeconds: time.Since(h.startTime).Seconds(),
	}

	// Best-effort database ping (non-fatal for liveness).
	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		resp.Database = "connected"
		if err := h.db.HealthCheck(ctx); err != nil {
			h.log.WithError(err).Warn("health: database check failed")
			resp.Database = "disconnected"
		}
	}

	c.JSON(http.StatusOK, resp)
}
