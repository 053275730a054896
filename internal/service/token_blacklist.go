package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sirosfoundation/go-chat-backend/pkg/config"
)

// TokenBlacklist holds the IDs of session tokens revoked by logout. Entries
// live until the token they revoke would have expired anyway.
type TokenBlacklist struct {
	config config.TokenBlacklistConfig
	logger *zap.Logger

	mu      sync.RWMutex
	revoked map[string]time.Time // jti -> token expiry
	now     func() time.Time

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewTokenBlacklist creates a new token blacklist
func NewTokenBlacklist(cfg config.TokenBlacklistConfig, logger *zap.Logger) *TokenBlacklist {
	cfg.SetDefaults()
	return &TokenBlacklist{
		config:  cfg,
		logger:  logger.Named("token-blacklist"),
		revoked: make(map[string]time.Time),
		now:     time.Now,
		stop:    make(chan struct{}),
	}
}

// Start launches the sweeper that drops entries for expired tokens
func (b *TokenBlacklist) Start() {
	if !b.config.Enabled {
		b.logger.Info("Token blacklist disabled, logout will only clear the cookie")
		return
	}

	b.wg.Add(1)
	go b.sweepLoop(time.Duration(b.config.CleanupIntervalSeconds) * time.Second)

	b.logger.Info("Token blacklist started",
		zap.Int("cleanup_interval_seconds", b.config.CleanupIntervalSeconds),
	)
}

// Stop halts the sweeper. It is safe to call when Start was a no-op.
func (b *TokenBlacklist) Stop() {
	select {
	case <-b.stop:
		return
	default:
		close(b.stop)
	}
	b.wg.Wait()
}

func (b *TokenBlacklist) sweepLoop(interval time.Duration) {
	defer b.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stop:
			return
		case <-ticker.C:
			b.sweep()
		}
	}
}

func (b *TokenBlacklist) sweep() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	removed := 0
	for jti, expiry := range b.revoked {
		if now.After(expiry) {
			delete(b.revoked, jti)
			removed++
		}
	}

	if removed > 0 {
		b.logger.Debug("Swept expired blacklist entries",
			zap.Int("removed", removed),
			zap.Int("remaining", len(b.revoked)),
		)
	}
	return removed
}

// Revoke marks the token with the given ID as unusable until expiry.
// Tokens without an ID cannot be revoked and are ignored.
func (b *TokenBlacklist) Revoke(ctx context.Context, jti string, expiry time.Time) {
	if !b.config.Enabled || jti == "" {
		return
	}

	b.mu.Lock()
	b.revoked[jti] = expiry
	b.mu.Unlock()

	b.logger.Debug("Token revoked", zap.String("jti", jti), zap.Time("expiry", expiry))
}

// IsRevoked reports whether the token with the given ID has been revoked
func (b *TokenBlacklist) IsRevoked(ctx context.Context, jti string) bool {
	if !b.config.Enabled || jti == "" {
		return false
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	expiry, ok := b.revoked[jti]
	return ok && !b.now().After(expiry)
}

// Len returns the number of entries currently held
func (b *TokenBlacklist) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.revoked)
}
