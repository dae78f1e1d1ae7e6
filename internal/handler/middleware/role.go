package middleware

import (
	"github.com/gin-gonic/gin"

	jwtpkg "inviterank/tracker/pkg/jwt"
	"inviterank/tracker/pkg/response"
)

// RequireRole lets a request through when its token satisfies any of roles.
// Must be used after JWTAuth middleware.
func RequireRole(roles ...jwtpkg.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := ClaimsFrom(c)
		if !ok {
			response.Unauthorized(c, "missing authentication")
			c.Abort()
			return
		}

		for _, role := range roles {
			if claims.Role.Satisfies(role) {
				c.Next()
				return
			}
		}

		response.Forbidden(c, "role "+string(claims.Role)+" may not access this resource")
		c.Abort()
	}
}
