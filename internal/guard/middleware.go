package guard

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"sheetchart-web/internal/shared/server/respond"
	"sheetchart-web/internal/shared/telemetry"
)

// Middleware enforces kind before the page handler runs. Nothing is written
// before the decision, so a redirected page never renders.
func Middleware(kind Kind, resolver func(c *gin.Context) Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		d, err := Check(c.Request.Context(), kind, resolver(c))
		switch d.Outcome {
		case Allow:
			c.Next()
		case Redirect:
			respond.Redirect(c, d.Location)
		default:
			fields := map[string]any{"guard": kind.String(), "path": c.Request.URL.Path}
			if err != nil {
				fields["error"] = err.Error()
			}
			telemetry.Warn("guard.unresolved", fields)
			respond.Error(c, http.StatusBadGateway, "session_unresolved", "Could not verify your session. Please try again.", nil)
			c.Abort()
		}
	}
}
