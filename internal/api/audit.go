package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/auditscope/client"
	"github.com/persistorai/auditscope/internal/analysis"
	"github.com/persistorai/auditscope/internal/export"
	"github.com/persistorai/auditscope/internal/middleware"
	"github.com/persistorai/auditscope/internal/service"
)

// TruncatedHeader is set to "true" when the page cap cut results short.
const TruncatedHeader = middleware.TruncatedHeader

// Upper bounds for caller-supplied paging parameters.
const (
	maxPageSize = 1000
	maxMaxPages = 1000
)

// AuditHandler serves audit-log queries and exports.
type AuditHandler struct {
	reports  ReportBuilder
	defaults DefaultsFunc
	log      *logrus.Logger
}

// NewAuditHandler creates an AuditHandler.
func NewAuditHandler(reports ReportBuilder, defaults DefaultsFunc, log *logrus.Logger) *AuditHandler {
	return &AuditHandler{reports: reports, defaults: defaults, log: log}
}

// auditResponse is the JSON payload of GET /audit-logs.
type auditResponse struct {
	*service.Report
	Total      int                      `json:"total"`
	Fetched    int                      `json:"fetched"`
	OrgOptions []analysis.Option        `json:"org_options"`
	Groups     []analysis.Option        `json:"group_options"`
	Taxonomy   []*analysis.TaxonomyNode `json:"taxonomy"`
	Activity   []analysis.Count         `json:"activity"`
	Categories []analysis.Count         `json:"categories"`
}

// List handles GET /api/v1/audit-logs.
//
// Query parameters: scope (org|group), id, from, to, event, user, page_size,
// max_pages select what is fetched upstream; category, subcategory, action,
// subaction, q, org, group, user_id and exclude filter the result locally.
// Pick lists and aggregates are computed over the unfiltered fetch.
func (h *AuditHandler) List(c *gin.Context) {
	rep, filtered, ok := h.build(c)
	if !ok {
		return
	}

	setTruncated(c, rep)
	c.JSON(http.StatusOK, auditResponse{
		Report:     filtered,
		Total:      len(filtered.Entries),
		Fetched:    len(rep.Entries),
		OrgOptions: analysis.UniqueOrgs(rep.Entries, rep.Orgs),
		Groups:     analysis.UniqueGroups(rep.Entries),
		Taxonomy:   analysis.BuildTaxonomy(rep.Entries),
		Activity:   analysis.ActivityByDay(filtered.Entries),
		Categories: analysis.CountByCategory(filtered.Entries),
	})
}

// Export handles GET /api/v1/audit-logs/export?format=csv|html|json|yaml|table.
func (h *AuditHandler) Export(c *gin.Context) {
	format := c.DefaultQuery("format", export.FormatCSV)
	if !export.Supported(format) {
		respondError(c, http.StatusBadRequest, ErrCodeValidationError,
			fmt.Sprintf("unsupported format %q", format))

		return
	}

	rep, filtered, ok := h.build(c)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, format, filtered); err != nil {
		respondServiceError(c, h.log, err)

		return
	}

	setTruncated(c, rep)
	if format == export.FormatHTML {
		c.Header("Content-Security-Policy", middleware.ReportCSP)
	}
	if name := export.DefaultFilename(format, rep.GeneratedAt); name != "" {
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	}
	c.Data(http.StatusOK, export.ContentType(format), buf.Bytes())
}

// build fetches the report for the request and applies local filters. On
// failure it writes the error response and returns ok=false.
func (h *AuditHandler) build(c *gin.Context) (rep, filtered *service.Report, ok bool) {
	spec, err := h.querySpec(c)
	if err != nil {
		respondServiceError(c, h.log, err)

		return nil, nil, false
	}

	start := time.Now()
	rep, err = h.reports.Build(c.Request.Context(), spec)
	if err != nil {
		respondServiceError(c, h.log, err)

		return nil, nil, false
	}

	middleware.Logger(c, h.log).WithFields(logrus.Fields{
		"report_id": rep.ID,
		"entries":   len(rep.Entries),
		"duration":  time.Since(start).String(),
	}).Debug("report built")

	f := filterFromQuery(c)
	if f.IsZero() {
		return rep, rep, true
	}
	return rep, rep.WithEntries(analysis.Apply(rep.Entries, f)), true
}

// querySpec builds the upstream query from parameters and current defaults.
func (h *AuditHandler) querySpec(c *gin.Context) (client.QuerySpec, error) {
	d := h.defaults()

	spec := client.QuerySpec{
		ScopeType: c.Query("scope"),
		ScopeID:   c.Query("id"),
		FromDate:  c.DefaultQuery("from", d.FromDate),
		ToDate:    c.DefaultQuery("to", d.ToDate),
		Event:     c.Query("event"),
		UserID:    c.Query("user"),
		PageSize:  boundedInt(c.Query("page_size"), d.PageSize, maxPageSize),
		MaxPages:  boundedInt(c.Query("max_pages"), d.MaxPages, maxMaxPages),
	}

	if spec.ScopeType == "" && spec.ScopeID == "" {
		scopeType, scopeID, ignoredGroup, err := service.ResolveScope(d.OrgID, d.GroupID)
		if err != nil {
			return spec, err
		}
		if ignoredGroup {
			middleware.Logger(c, h.log).Warn("both org and group IDs configured, using org")
		}
		spec.ScopeType, spec.ScopeID = scopeType, scopeID
	}

	if err := spec.Validate(); err != nil {
		return spec, err
	}
	if _, _, err := client.ResolveDateRange(spec.FromDate, spec.ToDate); err != nil {
		return spec, err
	}
	return spec, nil
}

func filterFromQuery(c *gin.Context) analysis.Filter {
	return analysis.Filter{
		Category:      c.Query("category"),
		Subcategory:   c.Query("subcategory"),
		Action:        c.Query("action"),
		Subaction:     c.Query("subaction"),
		EventContains: c.Query("q"),
		Excluded:      c.QueryArray("exclude"),
		OrgIDs:        c.QueryArray("org"),
		GroupIDs:      c.QueryArray("group"),
		UserID:        c.Query("user_id"),
	}
}

func setTruncated(c *gin.Context, rep *service.Report) {
	if rep.Truncated {
		c.Header(TruncatedHeader, "true")
	}
}

// boundedInt parses s, falling back for missing or non-positive values and
// capping at limit.
func boundedInt(s string, fallback, limit int) int {
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 {
		return fallback
	}

	if v > limit {
		return limit
	}

	return v
}
