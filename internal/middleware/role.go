package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/franciscosanchezn/gin-forms-api/internal/models"
)

// RequireRole is a middleware that checks if the user has the required role.
// It must run after Authenticate.
func RequireRole(requiredRole string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, exists := GetPrincipal(c)
		if !exists {
			abortUnauthorized(c, models.ErrUnauthorized, "User not authenticated")
			return
		}

		if p.Role != requiredRole {
			code := models.ErrForbidden
			if requiredRole == models.RoleAdmin {
				code = models.ErrAdminRequired
			}
			c.AbortWithStatusJSON(http.StatusForbidden, models.NewAPIError(code, "Insufficient permissions"))
			return
		}

		c.Next()
	}
}
