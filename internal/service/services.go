package service

import (
	"go.uber.org/zap"

	"github.com/sirosfoundation/go-chat-backend/internal/storage"
	"github.com/sirosfoundation/go-chat-backend/pkg/config"
)

// Services aggregates all application services
type Services struct {
	User           *UserService
	Message        *MessageService
	TokenBlacklist *TokenBlacklist
}

// NewServices creates a new Services instance
func NewServices(store storage.Store, cfg *config.Config, logger *zap.Logger) *Services {
	blacklist := NewTokenBlacklist(cfg.Blacklist, logger)

	return &Services{
		User:           NewUserService(store, cfg, blacklist, logger),
		Message:        NewMessageService(store, logger),
		TokenBlacklist: blacklist,
	}
}

// Start starts background workers
func (s *Services) Start() {
	s.TokenBlacklist.Start()
}

// Stop gracefully stops background workers
func (s *Services) Stop() {
	s.TokenBlacklist.Stop()
}
