package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sirosfoundation/go-chat-backend/internal/domain"
	"github.com/sirosfoundation/go-chat-backend/internal/service"
	"github.com/sirosfoundation/go-chat-backend/internal/storage"
	"github.com/sirosfoundation/go-chat-backend/internal/storage/memory"
	"github.com/sirosfoundation/go-chat-backend/internal/storage/mongodb"
	"github.com/sirosfoundation/go-chat-backend/pkg/config"
	"github.com/sirosfoundation/go-chat-backend/pkg/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Storage.Type = "memory"
	cfg.Storage.MongoDB.URI = "mongodb://localhost:27017"
	cfg.JWT.Secret = "test-secret"
	return cfg
}

type testEnv struct {
	router   *gin.Engine
	services *service.Services
	cfg      *config.Config
}

func setupTestEnv(t *testing.T, store storage.Store) *testEnv {
	t.Helper()
	logger := zap.NewNop()
	cfg := testConfig()
	services := service.NewServices(store, cfg, logger)
	t.Cleanup(services.Stop)
	handlers := NewHandlers(services, cfg, logger)

	router := gin.New()
	router.Use(middleware.BodyDecoder(cfg.Server.BodyLimit), middleware.CookieDecoder())
	requireUser := middleware.RequireUser(services.User, cfg.JWT.CookieName, logger)
	passThrough := func(c *gin.Context) { c.Next() }
	handlers.RegisterAuthRoutes(router.Group("/api/auth"), requireUser, passThrough)
	handlers.RegisterMessageRoutes(router.Group("/api/messages"), requireUser)
	router.GET("/api/status", handlers.Status(func() string { return "DatabaseReady" }, "memory"))
	router.GET("/api/health", handlers.Health(store.Ping))

	return &testEnv{router: router, services: services, cfg: cfg}
}

func (e *testEnv) do(method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, ck := range w.Result().Cookies() {
		if ck.Name == "jwt" {
			return ck
		}
	}
	t.Fatal("no session cookie in response")
	return nil
}

func (e *testEnv) signup(t *testing.T, email string) (domain.User, *http.Cookie) {
	t.Helper()
	w := e.do(http.MethodPost, "/api/auth/signup", gin.H{"fullName": "User", "email": email, "password": "secret123"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var user domain.User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &user))
	return user, sessionCookie(t, w)
}

func TestSignup(t *testing.T) {
	env := setupTestEnv(t, memory.NewStore())

	w := env.do(http.MethodPost, "/api/auth/signup", gin.H{"fullName": "Alice", "email": "alice@example.com", "password": "secret123"})
	require.Equal(t, http.StatusCreated, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "alice@example.com", body["email"])
	assert.Equal(t, "Alice", body["fullName"])
	assert.NotEmpty(t, body["_id"])
	assert.NotContains(t, body, "password_hash")
	assert.NotContains(t, body, "PasswordHash")

	ck := sessionCookie(t, w)
	assert.True(t, ck.HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, ck.SameSite)
	assert.False(t, ck.Secure)
	assert.Equal(t, 7*24*3600, ck.MaxAge)
}

func TestSignup_Validation(t *testing.T) {
	env := setupTestEnv(t, memory.NewStore())

	tests := []struct {
		name string
		body gin.H
	}{
		{"missing name", gin.H{"email": "a@example.com", "password": "secret123"}},
		{"bad email", gin.H{"fullName": "A", "email": "nope", "password": "secret123"}},
		{"short password", gin.H{"fullName": "A", "email": "a@example.com", "password": "123"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(http.MethodPost, "/api/auth/signup", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestSignup_DuplicateEmail(t *testing.T) {
	env := setupTestEnv(t, memory.NewStore())
	env.signup(t, "dup@example.com")

	w := env.do(http.MethodPost, "/api/auth/signup", gin.H{"fullName": "B", "email": "DUP@example.com", "password": "secret123"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Email already exists")
}

func TestSignup_SecureCookieInProduction(t *testing.T) {
	env := setupTestEnv(t, memory.NewStore())
	env.cfg.Server.Environment = "production"

	w := env.do(http.MethodPost, "/api/auth/signup", gin.H{"fullName": "P", "email": "p@example.com", "password": "secret123"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, sessionCookie(t, w).Secure)
}

func TestLoginCheckLogout(t *testing.T) {
	env := setupTestEnv(t, memory.NewStore())
	created, _ := env.signup(t, "bob@example.com")

	w := env.do(http.MethodPost, "/api/auth/login", gin.H{"email": "bob@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid credentials")

	w = env.do(http.MethodPost, "/api/auth/login", gin.H{"email": "bob@example.com", "password": "secret123"})
	require.Equal(t, http.StatusOK, w.Code)
	ck := sessionCookie(t, w)

	w = env.do(http.MethodGet, "/api/auth/check", nil, ck)
	require.Equal(t, http.StatusOK, w.Code)
	var user domain.User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &user))
	assert.Equal(t, created.ID, user.ID)

	w = env.do(http.MethodPost, "/api/auth/logout", nil, ck)
	require.Equal(t, http.StatusOK, w.Code)
	cleared := sessionCookie(t, w)
	assert.Empty(t, cleared.Value)
	assert.Less(t, cleared.MaxAge, 0)

	w = env.do(http.MethodGet, "/api/auth/check", nil, ck)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "revoked token must not authenticate")
}

func TestCheck_Unauthenticated(t *testing.T) {
	env := setupTestEnv(t, memory.NewStore())

	w := env.do(http.MethodGet, "/api/auth/check", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUpdateProfile(t *testing.T) {
	env := setupTestEnv(t, memory.NewStore())
	_, ck := env.signup(t, "pic@example.com")

	w := env.do(http.MethodPut, "/api/auth/update-profile", gin.H{"profilePic": "https://cdn.example.com/p.png"}, ck)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "https://cdn.example.com/p.png")

	w = env.do(http.MethodPut, "/api/auth/update-profile", gin.H{}, ck)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMessagesFlow(t *testing.T) {
	env := setupTestEnv(t, memory.NewStore())
	alice, aliceCk := env.signup(t, "alice@example.com")
	bob, bobCk := env.signup(t, "bob@example.com")

	w := env.do(http.MethodGet, "/api/messages/users", nil, aliceCk)
	require.Equal(t, http.StatusOK, w.Code)
	var contacts []domain.User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &contacts))
	require.Len(t, contacts, 1)
	assert.Equal(t, bob.ID, contacts[0].ID)

	w = env.do(http.MethodGet, "/api/messages/"+bob.ID.String(), nil, aliceCk)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = env.do(http.MethodPost, "/api/messages/send/"+bob.ID.String(), gin.H{"text": "hi bob"}, aliceCk)
	require.Equal(t, http.StatusCreated, w.Code)
	var msg domain.Message
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &msg))
	assert.Equal(t, alice.ID, msg.SenderID)
	assert.Equal(t, bob.ID, msg.ReceiverID)

	w = env.do(http.MethodGet, "/api/messages/"+alice.ID.String(), nil, bobCk)
	require.Equal(t, http.StatusOK, w.Code)
	var conv []domain.Message
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &conv))
	require.Len(t, conv, 1)
	assert.Equal(t, "hi bob", conv[0].Text)
}

func TestSendMessage_Errors(t *testing.T) {
	env := setupTestEnv(t, memory.NewStore())
	_, ck := env.signup(t, "alice@example.com")
	bob, _ := env.signup(t, "bob@example.com")

	w := env.do(http.MethodPost, "/api/messages/send/"+bob.ID.String(), gin.H{}, ck)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodPost, "/api/messages/send/nobody", gin.H{"text": "hi"}, ck)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(http.MethodPost, "/api/messages/send/"+bob.ID.String(), gin.H{"text": "hi"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDatabaseNotReady(t *testing.T) {
	store := mongodb.NewStore(&config.MongoDBConfig{URI: "mongodb://localhost:27017", Database: "chat"})
	env := setupTestEnv(t, store)

	w := env.do(http.MethodPost, "/api/auth/signup", gin.H{"fullName": "A", "email": "a@example.com", "password": "secret123"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = env.do(http.MethodPost, "/api/auth/login", gin.H{"email": "a@example.com", "password": "secret123"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	token, err := env.services.User.GenerateToken("someone")
	require.NoError(t, err)
	ck := &http.Cookie{Name: "jwt", Value: token}

	w = env.do(http.MethodGet, "/api/messages/users", nil, ck)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = env.do(http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestStatus(t *testing.T) {
	env := setupTestEnv(t, memory.NewStore())

	w := env.do(http.MethodGet, "/api/status", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp StatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "DatabaseReady", resp.State)
	assert.Equal(t, "memory", resp.Storage)
	assert.Equal(t, CurrentAPIVersion, resp.APIVersion)
	assert.Equal(t, APICapabilities[CurrentAPIVersion], resp.Capabilities)
}

func TestHealth(t *testing.T) {
	env := setupTestEnv(t, memory.NewStore())

	w := env.do(http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRespondError_Internal(t *testing.T) {
	env := setupTestEnv(t, memory.NewStore())
	h := NewHandlers(env.services, env.cfg, zap.NewNop())

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	h.respondError(c, errors.New("boom"), "test")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "boom")
}
