package pages

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"sheetchart-web/internal/apiclient"
)

type roleForm struct {
	Role string `form:"role" json:"role" binding:"required,oneof=user admin"`
}

func listParams(c *gin.Context) apiclient.ListParams {
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	return apiclient.ListParams{
		Page:   page,
		Limit:  limit,
		Search: c.Query("search"),
		Role:   c.Query("role"),
		User:   c.Query("user"),
	}
}

// adminHome loads the overview: platform counters and the first user page.
func (h *Handler) adminHome(c *gin.Context) {
	w := current(c)
	ctx := c.Request.Context()
	if _, err := w.Admin.FetchStats(ctx); err != nil {
		fail(c, err, w.Admin.View().Error, "admin", w.Admin.View())
		return
	}
	if _, err := w.Admin.FetchUsers(ctx, apiclient.ListParams{Page: 1, Limit: 10}); err != nil {
		fail(c, err, w.Admin.View().Error, "admin", w.Admin.View())
		return
	}
	render(c, http.StatusOK, "admin", w.Admin.View())
}

func (h *Handler) adminUsers(c *gin.Context) {
	w := current(c)
	if _, err := w.Admin.FetchUsers(c.Request.Context(), listParams(c)); err != nil {
		fail(c, err, w.Admin.View().Error, "admin-users", w.Admin.View())
		return
	}
	render(c, http.StatusOK, "admin-users", w.Admin.View())
}

func (h *Handler) adminUser(c *gin.Context) {
	w := current(c)
	if _, err := w.Admin.FetchUser(c.Request.Context(), c.Param("userId")); err != nil {
		fail(c, err, w.Admin.View().Error, "admin-user", w.Admin.View())
		return
	}
	render(c, http.StatusOK, "admin-user", w.Admin.View())
}

func (h *Handler) adminRole(c *gin.Context) {
	w := current(c)
	var form roleForm
	if err := c.ShouldBind(&form); err != nil {
		w.Notices.Error("Role must be user or admin")
		render(c, http.StatusBadRequest, "admin-user", w.Admin.View())
		return
	}
	if _, err := w.Admin.UpdateUserRole(c.Request.Context(), c.Param("userId"), apiclient.Role(form.Role)); err != nil {
		fail(c, err, w.Admin.View().Error, "admin-user", w.Admin.View())
		return
	}
	w.Notices.Success("User role updated successfully")
	redirect(c, "/admin/users/"+c.Param("userId"))
}

func (h *Handler) adminToggle(c *gin.Context) {
	w := current(c)
	if _, err := w.Admin.ToggleUserStatus(c.Request.Context(), c.Param("userId")); err != nil {
		fail(c, err, w.Admin.View().Error, "admin-user", w.Admin.View())
		return
	}
	w.Notices.Success("User status updated successfully")
	redirect(c, "/admin/users/"+c.Param("userId"))
}

func (h *Handler) adminDelete(c *gin.Context) {
	w := current(c)
	if err := w.Admin.DeleteUser(c.Request.Context(), c.Param("userId")); err != nil {
		fail(c, err, w.Admin.View().Error, "admin-users", w.Admin.View())
		return
	}
	w.Notices.Success("User deleted successfully")
	redirect(c, "/admin/users")
}

func (h *Handler) adminStats(c *gin.Context) {
	w := current(c)
	if _, err := w.Admin.FetchStats(c.Request.Context()); err != nil {
		fail(c, err, w.Admin.View().Error, "admin-stats", w.Admin.View())
		return
	}
	render(c, http.StatusOK, "admin-stats", w.Admin.View())
}

func (h *Handler) adminFiles(c *gin.Context) {
	w := current(c)
	if _, err := w.Admin.FetchAllFiles(c.Request.Context(), listParams(c)); err != nil {
		fail(c, err, w.Admin.View().Error, "admin-files", w.Admin.View())
		return
	}
	render(c, http.StatusOK, "admin-files", w.Admin.View())
}
