package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestRateLimitOnlyThrottlesConfiguredGroup(t *testing.T) {
	gin.SetMode(gin.TestMode)
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(func() time.Time { return now })

	groupFor := func(c *gin.Context) string {
		if c.Request.Method == http.MethodPost && (c.FullPath() == "/login" || c.FullPath() == "/register") {
			return "LOGIN"
		}
		return "PAGES"
	}

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(clientIDKey, "client-1")
		c.Next()
	})
	r.Use(RateLimit(RateLimitConfig{
		GroupFor: groupFor,
		Limiter:  limiter,
		Rules:    map[string]RateLimitRule{"LOGIN": PerMinute(60, 2)},
	}))
	r.POST("/login", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/dashboard", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 2; i++ {
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/login", nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("login %d expected 200, got %d", i+1, resp.Code)
		}
	}

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/login", nil))
	if resp.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", resp.Code)
	}
	if resp.Header().Get("Retry-After") != "1" {
		t.Fatalf("expected Retry-After 1, got %q", resp.Header().Get("Retry-After"))
	}

	for i := 0; i < 5; i++ {
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("page %d expected 200, got %d", i+1, resp.Code)
		}
	}

	now = now.Add(time.Second)
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/login", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected refill after 1s, got %d", resp.Code)
	}
}

func TestRateLimiterSeparatesPrincipals(t *testing.T) {
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(func() time.Time { return now })
	rule := RateLimitRule{Rate: 1, Burst: 1}

	if ok, _ := limiter.Allow("a|LOGIN", rule); !ok {
		t.Fatalf("first request for a should pass")
	}
	if ok, wait := limiter.Allow("a|LOGIN", rule); ok || wait <= 0 {
		t.Fatalf("second request for a should wait, got ok=%v wait=%s", ok, wait)
	}
	if ok, _ := limiter.Allow("b|LOGIN", rule); !ok {
		t.Fatalf("b has its own bucket")
	}
}

func TestRateLimitPrincipalOverride(t *testing.T) {
	gin.SetMode(gin.TestMode)
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)

	r := gin.New()
	r.Use(ClientID(ClientOptions{}))
	r.Use(RateLimit(RateLimitConfig{
		DefaultGroup: "LOGIN",
		PrincipalFor: func(c *gin.Context) string { return c.ClientIP() },
		Limiter:      NewRateLimiter(func() time.Time { return now }),
		Rules:        map[string]RateLimitRule{"LOGIN": PerMinute(60, 1)},
	}))
	r.POST("/login", func(c *gin.Context) { c.Status(http.StatusOK) })

	// No cookie is sent back, so each request gets a fresh client id.
	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = "10.0.0.9:5555"
		r.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Fatalf("codes = %v, want [200 429]", codes)
	}
}
