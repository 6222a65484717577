package middleware

import (
	"log"
	"net/http"
	"strings"

	"otp_auth/internal/utils"

	"github.com/gin-gonic/gin"
)

const AuthUserKey = "authUser"

// JWTAuthMiddleware rejects requests without a valid session token and
// stores the caller's user id for AuthUserID.
func JWTAuthMiddleware(jwtUtil *utils.JWTUtil) gin.HandlerFunc {
	return func(c *gin.Context) {
		scheme, token, found := strings.Cut(c.GetHeader("Authorization"), " ")
		if !found && scheme == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}
		token = strings.TrimSpace(token)
		if !found || !strings.EqualFold(scheme, "bearer") || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
			return
		}

		claims, err := jwtUtil.ValidateToken(token)
		if err != nil {
			log.Printf("WARN: rejected session token (request %s): %v", c.GetString(RequestIDKey), err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		c.Set(AuthUserKey, claims.UserID)
		c.Next()
	}
}

// AuthUserID returns the user id set by JWTAuthMiddleware.
func AuthUserID(c *gin.Context) (int64, bool) {
	v, exists := c.Get(AuthUserKey)
	if !exists {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}
