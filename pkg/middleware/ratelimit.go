package middleware

import (
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sirosfoundation/go-chat-backend/pkg/config"
)

// AuthRateLimiter throttles login and signup attempts per account, locking
// an identifier out for a while once it exceeds its budget.
type AuthRateLimiter struct {
	config config.AuthRateLimitConfig
	logger *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	limiters map[string]*authLimiter

	idleTTL     time.Duration
	lastCleanup time.Time
}

type authLimiter struct {
	limiter    *rate.Limiter
	lastSeen   time.Time
	lockoutEnd time.Time
}

// NewAuthRateLimiter creates a new rate limiter for auth endpoints
func NewAuthRateLimiter(cfg config.AuthRateLimitConfig, logger *zap.Logger) *AuthRateLimiter {
	cfg.SetDefaults()
	return &AuthRateLimiter{
		config:      cfg,
		logger:      logger.Named("auth-ratelimit"),
		now:         time.Now,
		limiters:    make(map[string]*authLimiter),
		idleTTL:     30 * time.Minute,
		lastCleanup: time.Now(),
	}
}

// getLimiter must be called with r.mu held
func (r *AuthRateLimiter) getLimiter(identifier string, now time.Time) *authLimiter {
	if now.Sub(r.lastCleanup) > r.idleTTL/3 {
		cutoff := now.Add(-r.idleTTL)
		for key, l := range r.limiters {
			if l.lastSeen.Before(cutoff) {
				delete(r.limiters, key)
			}
		}
		r.lastCleanup = now
	}

	l, ok := r.limiters[identifier]
	if !ok {
		// MaxAttempts per WindowSeconds, with half the budget available at once
		limit := rate.Limit(float64(r.config.MaxAttempts) / float64(r.config.WindowSeconds))
		burst := int(math.Ceil(float64(r.config.MaxAttempts) / 2.0))
		if burst < 1 {
			burst = 1
		}
		l = &authLimiter{limiter: rate.NewLimiter(limit, burst)}
		r.limiters[identifier] = l
	}
	l.lastSeen = now
	return l
}

// Allow reports whether another attempt is permitted for the identifier
func (r *AuthRateLimiter) Allow(identifier string) bool {
	if !r.config.Enabled {
		return true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	l := r.getLimiter(identifier, now)

	if now.Before(l.lockoutEnd) {
		return false
	}

	if !l.limiter.AllowN(now, 1) {
		lockout := time.Duration(r.config.LockoutSeconds) * time.Second
		l.lockoutEnd = now.Add(lockout)
		r.logger.Warn("Auth rate limit exceeded, applying lockout",
			zap.String("identifier", identifier),
			zap.Duration("lockout_duration", lockout),
		)
		return false
	}

	return true
}

// RecordFailure makes a failed attempt cost more than a successful one
func (r *AuthRateLimiter) RecordFailure(identifier string) {
	if !r.config.Enabled {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.getLimiter(identifier, now).limiter.AllowN(now, 2)
}

// Identifier keys an auth request by the email in its decoded body, falling
// back to the client address when the body carries none.
func Identifier(c *gin.Context) string {
	if email := strings.ToLower(strings.TrimSpace(BodyField(c.Request.Context(), "email"))); email != "" {
		return "email:" + email
	}
	return "ip:" + c.ClientIP()
}

// AuthRateLimitMiddleware returns a Gin middleware that rate limits auth endpoints
func AuthRateLimitMiddleware(rl *AuthRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.config.Enabled {
			c.Next()
			return
		}

		identifier := Identifier(c)
		if !rl.Allow(identifier) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Too many authentication attempts. Please try again later.",
			})
			return
		}

		c.Next()

		if c.Writer.Status() == http.StatusUnauthorized || c.Writer.Status() == http.StatusBadRequest {
			rl.RecordFailure(identifier)
		}
	}
}
