package api_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/auditscope/internal/api"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.ErrorLevel)

	return l
}

// newTestRouter builds the full router over the given deps, filling in
// defaults for anything left nil.
func newTestRouter(t *testing.T, deps *api.RouterDeps) http.Handler {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	if deps.Log == nil {
		deps.Log = testLogger()
	}
	if deps.Reports == nil {
		deps.Reports = &mockReports{}
	}
	if deps.Orgs == nil {
		deps.Orgs = &mockOrgs{}
	}
	if deps.Config == nil {
		deps.Config = &mockConfig{values: map[string]string{}}
	}
	if deps.Defaults == nil {
		deps.Defaults = func() api.QueryDefaults { return api.QueryDefaults{OrgID: "orgA"} }
	}
	if deps.CORSOrigins == nil {
		deps.CORSOrigins = []string{"http://localhost:3000"}
	}
	deps.Version = "test-v1"

	return api.NewRouter(ctx, deps)
}

// doRequest performs an HTTP request against the test router and returns the recorder.
func doRequest(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, http.NoBody)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	return w
}
