package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/proctor-backend/internal/response"
	"github.com/stemsi/proctor-backend/internal/service"
)

// RequireRole lets the request through only if the validated claims carry
// one of roles. It must run after RequireJWT.
func RequireRole(roles ...service.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		for _, r := range roles {
			if claims.Role == r {
				c.Next()
				return
			}
		}

		if len(roles) == 1 && roles[0] == service.RoleAdmin {
			response.AbortFail(c, http.StatusForbidden, response.ErrAdminAccessOnly)
			return
		}
		response.AbortFail(c, http.StatusForbidden, response.ErrForbidden)
	}
}
