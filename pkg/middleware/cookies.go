package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
)

// CookieDecoder parses the Cookie header into a name to value map that
// downstream handlers read through CookiesFrom. When a name repeats the
// first occurrence wins.
func CookieDecoder() gin.HandlerFunc {
	return func(c *gin.Context) {
		cookies := make(map[string]string)
		for _, ck := range c.Request.Cookies() {
			if _, seen := cookies[ck.Name]; !seen {
				cookies[ck.Name] = ck.Value
			}
		}
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), cookiesKey, cookies))
		c.Next()
	}
}

// CookiesFrom returns the cookies decoded by CookieDecoder
func CookiesFrom(ctx context.Context) map[string]string {
	m, _ := ctx.Value(cookiesKey).(map[string]string)
	return m
}

// Cookie returns a single decoded cookie value, or "" when absent
func Cookie(ctx context.Context, name string) string {
	return CookiesFrom(ctx)[name]
}
