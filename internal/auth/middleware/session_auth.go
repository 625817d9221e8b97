package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/studymate/study-mate-backend/internal/auth"
	"github.com/studymate/study-mate-backend/internal/auth/session"
)

// TokenParser is implemented by *session.Issuer.
type TokenParser interface {
	Parse(token string) (*session.Claims, error)
}

// RequireSession validates the session token and stores the user id in context
func RequireSession(parser TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "msg": "No token, authorization denied"})
			return
		}

		claims, err := parser.Parse(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "msg": "Token is not valid"})
			return
		}

		c.Set(auth.CtxUserID, claims.UserID)
		c.Next()
	}
}

// extractToken reads "Bearer <token>" or a bare token from the Authorization header
func extractToken(c *gin.Context) string {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if header == "" {
		return ""
	}
	parts := strings.Fields(header)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return parts[1]
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return ""
}
