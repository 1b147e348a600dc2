package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/auditscope/client"
	"github.com/persistorai/auditscope/internal/config"
	"github.com/persistorai/auditscope/internal/export"
	"github.com/persistorai/auditscope/internal/httputil"
	"github.com/persistorai/auditscope/internal/metrics"
	"github.com/persistorai/auditscope/internal/middleware"
	"github.com/persistorai/auditscope/internal/service"
)

// Error code constants for standardized API responses.
const (
	ErrCodeInvalidRequest  = "invalid_request"
	ErrCodeNotFound        = "not_found"
	ErrCodeInternalError   = "internal_error"
	ErrCodeRateLimited     = "rate_limited"
	ErrCodeValidationError = "validation_error"
	ErrCodeUpstream        = "upstream_error"
)

// respondError writes a standardized JSON error response, pulling the request
// ID from the Gin context (set by the request ID middleware).
func respondError(c *gin.Context, status int, code, message string) {
	metrics.ErrorsTotal.WithLabelValues(code).Inc()
	httputil.RespondError(c, status, code, message)
}

// validationErrors are caller mistakes reported as 400.
var validationErrors = []error{
	client.ErrInvalidDateFormat,
	client.ErrInvalidDateRange,
	client.ErrInvalidScopeType,
	client.ErrMissingScopeID,
	service.ErrNoScope,
	config.ErrUnknownKey,
	export.ErrUnknownFormat,
}

// respondServiceError maps an upstream, validation or internal error to an
// HTTP response.
func respondServiceError(c *gin.Context, log *logrus.Logger, err error) {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			respondError(c, http.StatusBadRequest, ErrCodeValidationError, err.Error())
			return
		}
	}

	var apiErr *client.APIError
	switch {
	case errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound:
		respondError(c, http.StatusNotFound, ErrCodeNotFound, apiErr.Message)
	case client.IsRateLimited(err):
		respondError(c, http.StatusTooManyRequests, ErrCodeRateLimited, "upstream rate limit exceeded")
	case apiErr != nil:
		respondError(c, http.StatusBadGateway, ErrCodeUpstream, apiErr.Message)
	case errors.Is(err, client.ErrUnrecognizedResponseFormat):
		respondError(c, http.StatusBadGateway, ErrCodeUpstream, "unrecognized upstream response")
	default:
		middleware.Logger(c, log).WithError(err).Error("request failed")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "internal error")
	}
}
