package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sirosfoundation/go-chat-backend/internal/service"
	"github.com/sirosfoundation/go-chat-backend/internal/storage"
	"github.com/sirosfoundation/go-chat-backend/pkg/config"
)

// Handlers aggregates all HTTP handlers
type Handlers struct {
	services *service.Services
	cfg      *config.Config
	logger   *zap.Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(services *service.Services, cfg *config.Config, logger *zap.Logger) *Handlers {
	return &Handlers{
		services: services,
		cfg:      cfg,
		logger:   logger.Named("handlers"),
	}
}

// Status reports the lifecycle state. It answers 200 in every state so
// health checks can tell a live process that is still connecting from a dead one.
func (h *Handlers) Status(state func() string, storageType string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, StatusResponse{
			Status:       "ok",
			Service:      "chat-backend",
			State:        state(),
			Environment:  h.cfg.Server.Environment,
			Storage:      storageType,
			APIVersion:   CurrentAPIVersion,
			Capabilities: APICapabilities[CurrentAPIVersion],
		})
	}
}

// Health answers 200 once the database responds and 503 before that
func (h *Handlers) Health(ping func(ctx context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// respondError maps service and storage errors onto HTTP responses
func (h *Handlers) respondError(c *gin.Context, err error, op string) {
	switch {
	case errors.Is(err, storage.ErrNotReady):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Database not ready"})
	case errors.Is(err, storage.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	case errors.Is(err, storage.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
	case errors.Is(err, service.ErrUserExists):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email already exists"})
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid credentials"})
	default:
		h.logger.Error("Request failed", zap.String("op", op), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
