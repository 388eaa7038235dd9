package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"sheetchart-web/internal/pages"
	"sheetchart-web/internal/services/health"
	"sheetchart-web/internal/shared/config"
	"sheetchart-web/internal/shared/metrics"
	"sheetchart-web/internal/shared/server/middleware"
	"sheetchart-web/internal/shared/server/respond"
)

// loginGroup is the rate-limit group of credential submissions.
const loginGroup = "LOGIN"

type RouterDeps struct {
	Config  config.Config
	Pages   *pages.Handler
	Health  *health.Service
	Limiter *middleware.RateLimiter
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
	)

	r.GET("/healthz", func(c *gin.Context) {
		report := deps.Health.Status(c.Request.Context())
		status := http.StatusOK
		if !report.OK {
			status = http.StatusServiceUnavailable
		}
		respond.JSON(c, status, report)
	})
	r.GET("/metrics", metrics.Handler())

	site := r.Group("",
		middleware.ClientID(middleware.ClientOptions{Secure: deps.Config.CookieSecure}),
		middleware.RateLimit(middleware.RateLimitConfig{
			Rules: map[string]middleware.RateLimitRule{
				loginGroup: middleware.PerMinute(deps.Config.LoginRatePerMinute, deps.Config.LoginBurst),
			},
			GroupFor: rateLimitGroup,
			// Credential guessing is throttled per address; a client can
			// always drop its cookie.
			PrincipalFor: func(c *gin.Context) string { return c.ClientIP() },
			Limiter:      deps.Limiter,
		}),
	)
	deps.Pages.RegisterRoutes(site)

	return r
}

func rateLimitGroup(c *gin.Context) string {
	if c.Request.Method != http.MethodPost {
		return ""
	}
	switch c.Request.URL.Path {
	case "/login", "/register":
		return loginGroup
	default:
		return ""
	}
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
