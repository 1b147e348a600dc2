package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// OrgHandler lists organizations.
type OrgHandler struct {
	orgs OrgLister
	log  *logrus.Logger
}

// NewOrgHandler creates an OrgHandler.
func NewOrgHandler(orgs OrgLister, log *logrus.Logger) *OrgHandler {
	return &OrgHandler{orgs: orgs, log: log}
}

// List handles GET /api/v1/orgs.
func (h *OrgHandler) List(c *gin.Context) {
	res := h.orgs.List(c.Request.Context())
	if !res.OK() {
		status := res.Err.Status
		if status < 400 || status >= 500 {
			status = http.StatusBadGateway
		}
		respondError(c, status, ErrCodeUpstream, res.Err.Message)

		return
	}

	c.JSON(http.StatusOK, gin.H{"orgs": res.Orgs, "total": len(res.Orgs)})
}
