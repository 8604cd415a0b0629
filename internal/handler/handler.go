// Package handler exposes the meal check-in API over gin.
package handler

import (
	"context"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"mealcheck/internal/account"
	"mealcheck/internal/apperr"
	"mealcheck/internal/auth"
	"mealcheck/internal/httpmiddleware"
	"mealcheck/internal/meal"
	"mealcheck/internal/provision"
)

// Check reports whether one dependency is healthy.
type Check func(ctx context.Context) bool

// Handler holds the services every route needs.
type Handler struct {
	Meals     *meal.Service
	Auth      *auth.Service
	Provision *provision.Service
	// Limiter is optional; nil disables rate limiting. It runs after
	// authentication and keys by profile.
	Limiter httpmiddleware.Limiter
	// IPLimiter runs before authentication and keys by client IP, so
	// requests with bad tokens are also budgeted. nil disables it.
	IPLimiter      httpmiddleware.Limiter
	MaxUploadBytes int64
	Checks         map[string]Check
}

// Routes registers the API on r.
func (h *Handler) Routes(r gin.IRouter) {
	r.GET("/healthz", h.healthz)

	limit := rateLimit(h.Limiter)
	ipLimit := rateLimit(h.IPLimiter)

	public := r.Group("/v1/auth", ipLimit, limit)
	public.POST("/login", h.login)
	public.POST("/refresh", h.refresh)

	v1 := r.Group("/v1", ipLimit, auth.RequireAuth(h.Auth), limit)
	v1.POST("/auth/logout", h.logout)
	v1.GET("/me", h.me)
	v1.GET("/home", h.home)

	athlete := v1.Group("", auth.RequireRole(account.RoleAthlete))
	athlete.GET("/meals/today", h.today)
	athlete.POST("/meals/:meal_type", h.submit)

	coach := v1.Group("", auth.RequireRole(account.RoleCoach))
	coach.GET("/coach/athletes", h.athletes)
	coach.GET("/coach/status", h.status)
	coach.GET("/coach/export", h.export)
	coach.POST("/functions/provision", h.provision)
}

func rateLimit(l httpmiddleware.Limiter) gin.HandlerFunc {
	if l == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return httpmiddleware.RateLimit(l)
}

func (h *Handler) healthz(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{"status": "ok"}
	for name, check := range h.Checks {
		ok := check(c.Request.Context())
		body[name] = ok
		if !ok {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
	}
	c.JSON(status, body)
}

// fail writes the coded error body. Server-side failures are logged with
// their cause; client errors are not.
func fail(c *gin.Context, err error) {
	e := apperr.As(err)
	status := apperr.HTTPStatus(e)
	if status >= http.StatusInternalServerError {
		log.Printf("[WARN] %s %s request=%s: %v", c.Request.Method, c.FullPath(), c.GetString("request_id"), e)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": e})
}

func mustProfile(c *gin.Context) *account.Profile {
	p, ok := auth.CurrentProfile(c)
	if !ok {
		panic("handler: route registered without RequireAuth")
	}
	return p
}
