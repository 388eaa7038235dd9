// Package pages serves the web views. Every handler dispatches operations on
// the caller's workspace and renders slice state as a JSON view model.
package pages

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"sheetchart-web/internal/apiclient"
	"sheetchart-web/internal/charts"
	"sheetchart-web/internal/files"
	"sheetchart-web/internal/guard"
	"sheetchart-web/internal/notify"
	"sheetchart-web/internal/shared/server/middleware"
	"sheetchart-web/internal/shared/server/respond"
	"sheetchart-web/internal/workspace"
)

const workspaceKey = "workspace"

// View is the envelope of every rendered page.
type View struct {
	Page    string          `json:"page"`
	Session SessionView     `json:"session"`
	Notices []notify.Notice `json:"notices"`
	Data    any             `json:"data,omitempty"`
}

type SessionView struct {
	IsAuthenticated bool            `json:"isAuthenticated"`
	User            *apiclient.User `json:"user"`
}

type Handler struct {
	registry *workspace.Registry
	exporter *charts.Exporter
}

// NewHandler serves pages from the workspaces of registry. A nil exporter
// disables chart export.
func NewHandler(registry *workspace.Registry, exporter *charts.Exporter) *Handler {
	return &Handler{registry: registry, exporter: exporter}
}

// RegisterRoutes mounts the pages on r. The client id middleware must run
// before them.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	pages := r.Group("", h.attach)
	pages.GET("/", h.home)
	pages.GET("/login", h.loginForm)
	pages.POST("/login", h.login)
	pages.GET("/register", h.registerForm)
	pages.POST("/register", h.register)
	pages.POST("/logout", h.logout)

	authed := pages.Group("", h.require(guard.RequireAuth))
	authed.GET("/dashboard", h.dashboard)
	authed.GET("/files", h.listFiles)
	authed.GET("/files/:fileId", h.fileDetail)
	authed.GET("/files/:fileId/stats", h.fileStats)
	authed.POST("/files/:fileId/delete", h.deleteFile)
	authed.GET("/upload", h.uploadForm)
	authed.POST("/upload", h.upload)
	authed.GET("/analysis/:fileId", h.analysis)
	authed.POST("/analysis/:fileId/generate", h.generate)
	authed.POST("/analysis/:fileId/history/:analysisId/delete", h.deleteAnalysis)
	authed.POST("/analysis/:fileId/export", h.export)
	authed.GET("/exports/*key", h.download)
	authed.GET("/profile", h.profile)
	authed.POST("/profile", h.updateProfile)
	authed.POST("/profile/password", h.changePassword)

	admin := pages.Group("/admin", h.require(guard.RequireAdmin))
	admin.GET("", h.adminHome)
	admin.GET("/users", h.adminUsers)
	admin.GET("/users/:userId", h.adminUser)
	admin.POST("/users/:userId/role", h.adminRole)
	admin.POST("/users/:userId/status", h.adminToggle)
	admin.POST("/users/:userId/delete", h.adminDelete)
	admin.GET("/stats", h.adminStats)
	admin.GET("/files", h.adminFiles)
}

func (h *Handler) attach(c *gin.Context) {
	w := h.registry.Get(c.Request.Context(), middleware.ClientIDFromContext(c))
	c.Set(workspaceKey, w)
	c.Next()
}

func current(c *gin.Context) *workspace.Workspace {
	return c.MustGet(workspaceKey).(*workspace.Workspace)
}

// require runs the guard. A session cleared while resolving already sends the
// client to login, so the observer's pending redirect is dropped.
func (h *Handler) require(kind guard.Kind) gin.HandlerFunc {
	check := guard.Middleware(kind, func(c *gin.Context) guard.Resolver { return current(c) })
	return func(c *gin.Context) {
		check(c)
		if c.IsAborted() {
			current(c).TakeRedirect()
		}
	}
}

// render writes page unless the session observer asked for navigation.
func render(c *gin.Context, status int, page string, data any) {
	w := current(c)
	if loc, ok := w.TakeRedirect(); ok {
		respond.Redirect(c, loc)
		return
	}
	sess := w.Session()
	respond.JSON(c, status, View{
		Page:    page,
		Session: SessionView{IsAuthenticated: sess.Authenticated(), User: sess.User},
		Notices: w.Notices.Drain(),
		Data:    data,
	})
}

// redirect navigates to location, or to the observer's target if one is
// pending.
func redirect(c *gin.Context, location string) {
	if loc, ok := current(c).TakeRedirect(); ok {
		location = loc
	}
	respond.Redirect(c, location)
}

// fail queues msg as an error notice and renders page with a status derived
// from err. Expired sessions are reported by the session observer alone.
func fail(c *gin.Context, err error, msg, page string, data any) {
	if !apiclient.IsUnauthorized(err) {
		current(c).Notices.Error(msg)
	}
	render(c, failureStatus(err), page, data)
}

func failureStatus(err error) int {
	var apiErr *apiclient.APIError
	switch {
	case errors.Is(err, apiclient.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, files.ErrInvalidUpload):
		return http.StatusBadRequest
	case errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500:
		return apiErr.Status
	default:
		return http.StatusBadGateway
	}
}
