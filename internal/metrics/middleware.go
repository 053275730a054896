package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sirosfoundation/go-chat-backend/pkg/middleware"
)

// Middleware records request count, latency and in-flight gauge. It must be
// installed ahead of the dispatcher so the rule name is set when it reads it.
func Middleware(skipPaths ...string) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		if _, ok := skip[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		HTTPRequestsInFlight.Inc()
		defer HTTPRequestsInFlight.Dec()

		start := time.Now()
		c.Next()

		rule := c.GetString(middleware.RuleKey)
		if rule == "" {
			rule = "none"
		}
		HTTPRequestsTotal.WithLabelValues(c.Request.Method, rule, strconv.Itoa(c.Writer.Status())).Inc()
		HTTPRequestDuration.WithLabelValues(c.Request.Method, rule).Observe(time.Since(start).Seconds())
	}
}
