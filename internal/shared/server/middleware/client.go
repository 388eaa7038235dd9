package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	clientIDKey = "clientId"
	// ClientCookie names the cookie that binds a browser to its workspace.
	ClientCookie = "sc_client"
)

// ClientOptions configures the client cookie.
type ClientOptions struct {
	Secure bool
	MaxAge int
}

// ClientID reads the client cookie, issuing a fresh random id when it is
// missing or malformed, and stores the id on the context.
func ClientID(opts ClientOptions) gin.HandlerFunc {
	maxAge := opts.MaxAge
	if maxAge <= 0 {
		maxAge = 30 * 24 * 60 * 60
	}
	return func(c *gin.Context) {
		id, err := c.Cookie(ClientCookie)
		if err != nil || !validClientID(id) {
			id = uuid.NewString()
		}
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(ClientCookie, id, maxAge, "/", "", opts.Secure, true)
		c.Set(clientIDKey, id)
		c.Next()
	}
}

// ClientIDFromContext returns the id stored by ClientID.
func ClientIDFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	return c.GetString(clientIDKey)
}

func validClientID(id string) bool {
	id = strings.TrimSpace(id)
	if id == "" {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}
