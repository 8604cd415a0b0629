package auth

import (
	"strings"

	"github.com/gin-gonic/gin"

	"mealcheck/internal/account"
	"mealcheck/internal/apperr"
)

const (
	profileKey = "profile"
	claimsKey  = "claims"
)

// RequireAuth enforces a bearer access token and stores the profile loaded
// for its subject on the context.
func RequireAuth(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			abort(c, apperr.AuthFailed("missing bearer token"))
			return
		}
		tokenStr := strings.TrimSpace(authz[len("bearer "):])
		p, claims, err := svc.Authenticate(c.Request.Context(), tokenStr)
		if err != nil {
			abort(c, err)
			return
		}
		c.Set(profileKey, p)
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// RequireRole lets only profiles with one of the given roles through.
func RequireRole(roles ...account.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := CurrentProfile(c)
		if !ok {
			abort(c, apperr.AuthFailed("not signed in"))
			return
		}
		for _, r := range roles {
			if p.Role == r {
				c.Next()
				return
			}
		}
		abort(c, apperr.Forbidden("role "+p.Role.String()+" may not access this resource"))
	}
}

// CurrentProfile returns the profile RequireAuth stored.
func CurrentProfile(c *gin.Context) (*account.Profile, bool) {
	v, ok := c.Get(profileKey)
	if !ok {
		return nil, false
	}
	p, ok := v.(*account.Profile)
	return p, ok && p != nil
}

// CurrentClaims returns the access token claims RequireAuth verified.
func CurrentClaims(c *gin.Context) (Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return Claims{}, false
	}
	claims, ok := v.(Claims)
	return claims, ok
}

func abort(c *gin.Context, err error) {
	e := apperr.As(err)
	c.AbortWithStatusJSON(apperr.HTTPStatus(e), gin.H{"error": e})
}
