package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeClock is a controllable time source for the limiter.
type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func newLimitedRouter(t *testing.T, limit RateLimit) (*gin.Engine, *fakeClock) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	clock := &fakeClock{t: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)}
	rl := NewRateLimiter(ctx, limit)
	rl.now = clock.now

	r := gin.New()
	r.Use(rl.Handler())
	r.GET("/api/v1/audit-logs", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r, clock
}

func hit(r *gin.Engine, ip string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/audit-logs", http.NoBody)
	req.RemoteAddr = ip + ":1234"
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimiter_BurstThenReject(t *testing.T) {
	r, _ := newLimitedRouter(t, RateLimit{Name: "upstream", PerSecond: 1, Burst: 2})

	for i := range 2 {
		if w := hit(r, "1.2.3.4"); w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, w.Code)
		}
	}

	w := hit(r, "1.2.3.4")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "1" {
		t.Errorf("Retry-After: got %q, want 1", got)
	}
}

func TestRateLimiter_FractionalRate(t *testing.T) {
	r, clock := newLimitedRouter(t, RateLimit{Name: "upstream", PerSecond: 0.5, Burst: 1})

	if w := hit(r, "1.2.3.4"); w.Code != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", w.Code)
	}

	w := hit(r, "1.2.3.4")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "2" {
		t.Errorf("Retry-After: got %q, want 2", got)
	}

	clock.advance(1 * time.Second)
	if w := hit(r, "1.2.3.4"); w.Code != http.StatusTooManyRequests {
		t.Fatalf("half a token should not admit a request, got %d", w.Code)
	}

	clock.advance(2 * time.Second)
	if w := hit(r, "1.2.3.4"); w.Code != http.StatusOK {
		t.Fatalf("expected refill after 2s, got %d", w.Code)
	}
}

func TestRateLimiter_IndependentClients(t *testing.T) {
	r, _ := newLimitedRouter(t, RateLimit{Name: "api", PerSecond: 1, Burst: 1})

	hit(r, "1.1.1.1")
	if w := hit(r, "2.2.2.2"); w.Code != http.StatusOK {
		t.Fatalf("different IP should not be rate limited, got %d", w.Code)
	}
}

func TestRateLimiter_RefillCapsAtBurst(t *testing.T) {
	r, clock := newLimitedRouter(t, RateLimit{Name: "api", PerSecond: 10, Burst: 2})

	hit(r, "5.5.5.5")
	clock.advance(time.Hour)

	for i := range 2 {
		if w := hit(r, "5.5.5.5"); w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, w.Code)
		}
	}
	if w := hit(r, "5.5.5.5"); w.Code != http.StatusTooManyRequests {
		t.Fatalf("tokens should cap at burst, got %d", w.Code)
	}
}
