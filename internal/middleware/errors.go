package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/persistorai/auditscope/internal/httputil"
)

// Error codes emitted by middleware.
const (
	errCodeRateLimited = "rate_limited"
	errCodeTooLarge    = "payload_too_large"
)

// respondError delegates to the shared httputil.RespondError helper.
func respondError(c *gin.Context, code int, errCode, message string) {
	httputil.RespondError(c, code, errCode, message)
}
