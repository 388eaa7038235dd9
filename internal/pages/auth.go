package pages

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"sheetchart-web/internal/apiclient"
	"sheetchart-web/internal/guard"
	"sheetchart-web/internal/shared/telemetry"
)

type loginForm struct {
	Email    string `form:"email" json:"email" binding:"required"`
	Password string `form:"password" json:"password" binding:"required"`
}

type registerForm struct {
	Username string `form:"username" json:"username" binding:"required"`
	Email    string `form:"email" json:"email" binding:"required"`
	Password string `form:"password" json:"password" binding:"required"`
}

type profileForm struct {
	Username string `form:"username" json:"username"`
	Email    string `form:"email" json:"email"`
}

type passwordForm struct {
	CurrentPassword string `form:"currentPassword" json:"currentPassword" binding:"required"`
	NewPassword     string `form:"newPassword" json:"newPassword" binding:"required"`
}

func (h *Handler) home(c *gin.Context) {
	render(c, http.StatusOK, "home", nil)
}

func (h *Handler) loginForm(c *gin.Context) {
	w := current(c)
	if w.Session().Authenticated() {
		redirect(c, guard.DashboardPath)
		return
	}
	render(c, http.StatusOK, "login", w.Auth.View())
}

func (h *Handler) login(c *gin.Context) {
	w := current(c)
	var form loginForm
	if err := c.ShouldBind(&form); err != nil {
		w.Notices.Error("Email and password are required")
		render(c, http.StatusBadRequest, "login", w.Auth.View())
		return
	}
	_, err := w.Auth.Login(c.Request.Context(), apiclient.Credentials{Email: form.Email, Password: form.Password})
	if err != nil {
		view := w.Auth.View()
		fail(c, err, view.Error, "login", view)
		return
	}
	w.Notices.Success("Login successful!")
	redirect(c, guard.DashboardPath)
}

func (h *Handler) registerForm(c *gin.Context) {
	w := current(c)
	if w.Session().Authenticated() {
		redirect(c, guard.DashboardPath)
		return
	}
	render(c, http.StatusOK, "register", w.Auth.View())
}

func (h *Handler) register(c *gin.Context) {
	w := current(c)
	var form registerForm
	if err := c.ShouldBind(&form); err != nil {
		w.Notices.Error("Username, email and password are required")
		render(c, http.StatusBadRequest, "register", w.Auth.View())
		return
	}
	_, err := w.Auth.Register(c.Request.Context(), apiclient.Registration{
		Username: form.Username,
		Email:    form.Email,
		Password: form.Password,
	})
	if err != nil {
		view := w.Auth.View()
		fail(c, err, view.Error, "register", view)
		return
	}
	w.Notices.Success("Registration successful!")
	redirect(c, guard.DashboardPath)
}

func (h *Handler) logout(c *gin.Context) {
	w := current(c)
	if err := w.Logout(c.Request.Context()); err != nil {
		telemetry.Warn("session.logout_failed", map[string]any{"client_id": w.ID, "error": err.Error()})
	}
	w.Notices.Success("Logged out successfully")
	redirect(c, guard.LoginPath)
}

func (h *Handler) profile(c *gin.Context) {
	w := current(c)
	if _, err := w.Auth.GetProfile(c.Request.Context()); err != nil {
		view := w.Auth.View()
		fail(c, err, view.Error, "profile", view)
		return
	}
	render(c, http.StatusOK, "profile", w.Auth.View())
}

func (h *Handler) updateProfile(c *gin.Context) {
	w := current(c)
	var form profileForm
	if err := c.ShouldBind(&form); err != nil || (form.Username == "" && form.Email == "") {
		w.Notices.Error("Nothing to update")
		render(c, http.StatusBadRequest, "profile", w.Auth.View())
		return
	}
	_, err := w.Auth.UpdateProfile(c.Request.Context(), apiclient.ProfileUpdate{Username: form.Username, Email: form.Email})
	if err != nil {
		view := w.Auth.View()
		fail(c, err, view.Error, "profile", view)
		return
	}
	w.Notices.Success("Profile updated successfully")
	redirect(c, "/profile")
}

func (h *Handler) changePassword(c *gin.Context) {
	w := current(c)
	var form passwordForm
	if err := c.ShouldBind(&form); err != nil {
		w.Notices.Error("Current and new password are required")
		render(c, http.StatusBadRequest, "profile", w.Auth.View())
		return
	}
	err := w.Auth.ChangePassword(c.Request.Context(), apiclient.PasswordChange{
		CurrentPassword: form.CurrentPassword,
		NewPassword:     form.NewPassword,
	})
	if err != nil {
		view := w.Auth.View()
		fail(c, err, view.Error, "profile", view)
		return
	}
	w.Notices.Success("Password changed successfully")
	redirect(c, "/profile")
}
