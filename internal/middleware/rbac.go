package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/identica-edu/portal-api/internal/models"
	appErrors "github.com/identica-edu/portal-api/pkg/errors"
	"github.com/identica-edu/portal-api/pkg/response"
)

// MinRole gates a route by minimum role rank. Any role at or above the
// minimum passes; an admin therefore reaches every gated route. Unknown
// roles never pass.
func MinRole(min models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims, ok := claimsValue.(*models.JWTClaims)
		if !ok || !claims.Role.AtLeast(min) {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
