package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bodyRouter(limit int64, invoked *bool) *gin.Engine {
	router := gin.New()
	router.Use(BodyDecoder(limit))
	router.POST("/echo", func(c *gin.Context) {
		*invoked = true
		decoded, ok := BodyFrom(c.Request.Context())
		raw, _ := io.ReadAll(c.Request.Body)
		c.JSON(http.StatusOK, gin.H{"decoded": ok, "raw": string(raw), "value": decoded})
	})
	return router
}

func postBody(router *gin.Engine, contentType, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestBodyDecoder_ValidJSON(t *testing.T) {
	var invoked bool
	router := bodyRouter(1<<10, &invoked)

	w := postBody(router, "application/json; charset=utf-8", `{"text":"hi"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, invoked)
	assert.JSONEq(t, `{"decoded":true,"raw":"{\"text\":\"hi\"}","value":{"text":"hi"}}`, w.Body.String())
}

func TestBodyDecoder_MalformedJSON(t *testing.T) {
	var invoked bool
	router := bodyRouter(1<<10, &invoked)

	w := postBody(router, "application/json", `{"text":`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, invoked, "handler must not run for a malformed body")
	assert.Contains(t, w.Body.String(), ErrMalformedBody.Error())
}

func TestBodyDecoder_TooLarge(t *testing.T) {
	var invoked bool
	router := bodyRouter(8, &invoked)

	w := postBody(router, "application/json", `{"text":"0123456789"}`)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.False(t, invoked)
}

func TestBodyDecoder_IgnoresNonJSON(t *testing.T) {
	var invoked bool
	router := bodyRouter(1<<10, &invoked)

	w := postBody(router, "text/plain", `{"text":`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, invoked)
	assert.Contains(t, w.Body.String(), `"decoded":false`)
}

func TestBodyDecoder_EmptyBody(t *testing.T) {
	var invoked bool
	router := bodyRouter(1<<10, &invoked)

	w := postBody(router, "application/json", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, invoked)
}

func TestBodyDecoder_VendorJSON(t *testing.T) {
	var invoked bool
	router := bodyRouter(1<<10, &invoked)

	w := postBody(router, "application/vnd.api+json", `[1,`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, invoked)
}

func TestBodyField(t *testing.T) {
	router := gin.New()
	router.Use(BodyDecoder(1 << 10))
	router.POST("/echo", func(c *gin.Context) {
		c.String(http.StatusOK, BodyField(c.Request.Context(), "email")+"|"+BodyField(c.Request.Context(), "missing"))
	})

	w := postBody(router, "application/json", `{"email":"a@example.com","n":1}`)
	assert.Equal(t, "a@example.com|", w.Body.String())

	w = postBody(router, "application/json", `["a"]`)
	assert.Equal(t, "|", w.Body.String())
}
