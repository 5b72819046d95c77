package middleware

import (
	"net/http"
	"strings"

	"barangay/pkg/utils"

	"github.com/gin-gonic/gin"
)

const sessionKey = "session"

func JWTAuthMiddleware(issuer *utils.TokenIssuer) gin.HandlerFunc {

	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			utils.RespondError(c, http.StatusUnauthorized, "Authorization header missing or invalid")
			c.Abort()
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		claims, err := issuer.ValidateToken(tokenString)
		if err != nil {
			utils.RespondError(c, http.StatusUnauthorized, "Invalid or expired token")
			c.Abort()
			return
		}

		// Pass user information to the next handler
		c.Set("user_id", claims.UserID)
		c.Set("Role", claims.Role)
		c.Set(sessionKey, claims.Session())
		c.Next()
	}
}

func RoleMiddleware(requiredRole string) gin.HandlerFunc {

	return func(c *gin.Context) {
		role := c.GetString("Role")

		if role != requiredRole {
			utils.RespondError(c, http.StatusForbidden, "Forbidden: insufficient permissions")
			c.Abort()
			return
		}

		c.Next()
	}
}

// SessionFrom returns the caller's session, or the zero Session on public routes.
func SessionFrom(c *gin.Context) utils.Session {
	if v, ok := c.Get(sessionKey); ok {
		if s, ok := v.(utils.Session); ok {
			return s
		}
	}
	return utils.Session{}
}

// SetSession is used by tests and internal callers that authenticate out of band.
func SetSession(c *gin.Context, s utils.Session) {
	c.Set("user_id", s.UserID)
	c.Set("Role", s.Role)
	c.Set(sessionKey, s)
}
