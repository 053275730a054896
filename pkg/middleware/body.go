package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"
)

type contextKey string

const (
	bodyKey    contextKey = "decoded_body"
	cookiesKey contextKey = "decoded_cookies"
)

// ErrMalformedBody is reported when a JSON request body does not parse
var ErrMalformedBody = errors.New("malformed JSON body")

// BodyDecoder parses JSON request bodies up to limit bytes. A body that does
// not parse is answered with 400 and the request goes no further; an oversize
// body gets 413. The raw bytes are restored so downstream handlers can bind
// them again, and the decoded value is available through BodyFrom. Only
// bodies declared as JSON are inspected; anything else, including a body
// with no Content-Type, passes through untouched.
func BodyDecoder(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body == nil || c.Request.Body == http.NoBody || !isJSON(c.ContentType()) {
			c.Next()
			return
		}

		raw, err := io.ReadAll(io.LimitReader(c.Request.Body, limit+1))
		_ = c.Request.Body.Close()
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
			return
		}
		if int64(len(raw)) > limit {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
			return
		}

		c.Request.Body = io.NopCloser(bytes.NewReader(raw))
		if len(bytes.TrimSpace(raw)) == 0 {
			c.Next()
			return
		}

		var decoded any
		if err := json.Unmarshal(raw, &decoded); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": ErrMalformedBody.Error()})
			return
		}

		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), bodyKey, decoded))
		c.Next()
	}
}

// BodyFrom returns the decoded JSON body stored by BodyDecoder
func BodyFrom(ctx context.Context) (any, bool) {
	v := ctx.Value(bodyKey)
	return v, v != nil
}

// BodyField returns a top-level string field of a decoded JSON object body
func BodyField(ctx context.Context, name string) string {
	v, ok := BodyFrom(ctx)
	if !ok {
		return ""
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return ""
	}
	s, _ := obj[name].(string)
	return s
}

func isJSON(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == "application/json" || (len(mt) > 5 && mt[len(mt)-5:] == "+json")
}
