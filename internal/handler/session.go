package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"mealcheck/internal/account"
	"mealcheck/internal/apperr"
	"mealcheck/internal/auth"
)

func (h *Handler) login(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperr.Invalid("body must be {email, password}"))
		return
	}
	sess, err := h.Auth.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (h *Handler) refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperr.Invalid("refresh_token required"))
		return
	}
	sess, err := h.Auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (h *Handler) logout(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	// The body is optional.
	_ = c.ShouldBindJSON(&req)
	claims, _ := auth.CurrentClaims(c)
	if err := h.Auth.SignOut(c.Request.Context(), claims, req.RefreshToken); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) me(c *gin.Context) {
	c.JSON(http.StatusOK, mustProfile(c))
}

// home is the single place the API branches on role.
func (h *Handler) home(c *gin.Context) {
	p := mustProfile(c)
	switch p.Role {
	case account.RoleCoach:
		rep, err := h.Meals.RangeStatus(c.Request.Context(), "", "")
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"role": p.Role, "dashboard": h.viewRange(rep)})
	case account.RoleAthlete:
		view, err := h.Meals.TodayFor(c.Request.Context(), p.ID)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"role": p.Role, "today": h.viewDay(view)})
	default:
		fail(c, apperr.Forbidden("profile has no usable role"))
	}
}
