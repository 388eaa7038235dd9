package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"sheetchart-web/internal/shared/metrics"
	"sheetchart-web/internal/shared/telemetry"
)

// Logging emits a structured log line and records metrics per request.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.EqualFold(c.Request.Method, "OPTIONS") {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.ObserveHTTPRequest(c.Request.Method, route, status, latency)

		fields := map[string]any{
			"request_id":  RequestIDFromContext(c),
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"route":       route,
			"status":      status,
			"duration_ms": float64(latency.Microseconds()) / 1000.0,
			"client_id":   ClientIDFromContext(c),
			"client_ip":   c.ClientIP(),
			"user_agent":  c.Request.UserAgent(),
		}
		if loc := c.Writer.Header().Get("Location"); loc != "" {
			fields["location"] = loc
		}
		telemetry.Info("request.complete", fields)
	}
}
