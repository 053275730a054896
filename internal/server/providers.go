package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sirosfoundation/go-chat-backend/internal/api"
	"github.com/sirosfoundation/go-chat-backend/pkg/middleware"
)

// RouteProvider contributes a handler group that owns every path under
// Prefix. Each provider is mounted on its own engine so its routes, and
// its own 404s, stay inside the group.
type RouteProvider interface {
	// Name identifies the group in logs and metrics
	Name() string

	// Prefix is the path the group is mounted under, e.g. /api/auth
	Prefix() string

	// RegisterRoutes adds the group's routes relative to Prefix
	RegisterRoutes(rg *gin.RouterGroup)
}

// mount builds the engine that serves a provider's group
func mount(p RouteProvider, logger *zap.Logger) http.Handler {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})
	p.RegisterRoutes(engine.Group(p.Prefix()))

	logger.Debug("Mounted route provider",
		zap.String("name", p.Name()),
		zap.String("prefix", p.Prefix()),
	)
	return engine
}

// AuthProvider serves account and session endpoints
type AuthProvider struct {
	handlers    *api.Handlers
	requireUser gin.HandlerFunc
	limit       gin.HandlerFunc
}

// NewAuthProvider creates the auth route provider
func NewAuthProvider(handlers *api.Handlers, requireUser gin.HandlerFunc, limiter *middleware.AuthRateLimiter) *AuthProvider {
	return &AuthProvider{
		handlers:    handlers,
		requireUser: requireUser,
		limit:       middleware.AuthRateLimitMiddleware(limiter),
	}
}

func (p *AuthProvider) Name() string   { return "auth" }
func (p *AuthProvider) Prefix() string { return "/api/auth" }

func (p *AuthProvider) RegisterRoutes(rg *gin.RouterGroup) {
	p.handlers.RegisterAuthRoutes(rg, p.requireUser, p.limit)
}

// MessagesProvider serves contact and direct message endpoints
type MessagesProvider struct {
	handlers    *api.Handlers
	requireUser gin.HandlerFunc
}

// NewMessagesProvider creates the messages route provider
func NewMessagesProvider(handlers *api.Handlers, requireUser gin.HandlerFunc) *MessagesProvider {
	return &MessagesProvider{handlers: handlers, requireUser: requireUser}
}

func (p *MessagesProvider) Name() string   { return "messages" }
func (p *MessagesProvider) Prefix() string { return "/api/messages" }

func (p *MessagesProvider) RegisterRoutes(rg *gin.RouterGroup) {
	p.handlers.RegisterMessageRoutes(rg, p.requireUser)
}
