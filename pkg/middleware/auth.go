package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sirosfoundation/go-chat-backend/internal/domain"
)

// Gin context keys shared between middleware and handlers
const (
	UserIDKey = "user_id"
	TokenKey  = "token"
	// RuleKey names the dispatch rule that answered the request
	RuleKey = "dispatch_rule"
)

// Authenticator resolves a session token to a user
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (domain.UserID, error)
}

// RequireUser rejects requests that do not carry a valid session cookie.
// The cookie is read from the values decoded by CookieDecoder.
func RequireUser(auth Authenticator, cookieName string, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := Cookie(c.Request.Context(), cookieName)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized - no token provided"})
			return
		}

		userID, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			logger.Debug("Rejected session token", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized - invalid token"})
			return
		}

		c.Set(UserIDKey, userID)
		c.Set(TokenKey, token)
		c.Next()
	}
}

// CurrentUser returns the user ID set by RequireUser
func CurrentUser(c *gin.Context) domain.UserID {
	v, _ := c.Get(UserIDKey)
	id, _ := v.(domain.UserID)
	return id
}

// Logger returns a gin middleware for logging
func Logger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if rule := c.GetString(RuleKey); rule != "" {
			fields = append(fields, zap.String("rule", rule))
		}

		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			logger.Error("Request", fields...)
		default:
			logger.Info("Request", fields...)
		}
	}
}
