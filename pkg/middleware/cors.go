package middleware

import (
	"net/url"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sirosfoundation/go-chat-backend/pkg/config"
)

// TrustedOrigins is a normalized set of scheme://host origins
type TrustedOrigins struct {
	set      map[string]struct{}
	allowAll bool
}

// NewTrustedOrigins normalizes the configured origins. Entries that are not
// absolute URLs are logged and skipped; "*" trusts every origin.
func NewTrustedOrigins(origins []string, logger *zap.Logger) *TrustedOrigins {
	t := &TrustedOrigins{set: make(map[string]struct{}, len(origins))}
	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		if trimmed == "*" {
			t.allowAll = true
			continue
		}
		normalized, ok := normalizeOrigin(trimmed)
		if !ok {
			logger.Warn("Ignoring invalid origin in configuration", zap.String("origin", origin))
			continue
		}
		t.set[normalized] = struct{}{}
	}
	return t
}

// Allows reports whether the Origin header value is trusted
func (t *TrustedOrigins) Allows(origin string) bool {
	if origin == "" {
		return false
	}
	normalized, ok := normalizeOrigin(origin)
	if !ok {
		return false
	}
	if t.allowAll {
		return true
	}
	_, ok = t.set[normalized]
	return ok
}

func normalizeOrigin(origin string) (string, bool) {
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host), true
}

// CORS grants cross-origin access to trusted origins only. Requests from any
// other origin pass through without CORS headers; the browser enforces the
// policy, the server never rejects on origin.
func CORS(cfg config.CORSConfig, logger *zap.Logger) gin.HandlerFunc {
	trusted := NewTrustedOrigins(cfg.AllowedOrigins, logger)

	handler := cors.New(cors.Config{
		AllowOriginFunc:  trusted.Allows,
		AllowMethods:     cfg.AllowedMethods,
		AllowHeaders:     cfg.AllowedHeaders,
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           time.Duration(cfg.MaxAge) * time.Second,
	})

	return func(c *gin.Context) {
		if !trusted.Allows(c.GetHeader("Origin")) {
			return
		}
		handler(c)
	}
}
