package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/sirosfoundation/go-chat-backend/internal/domain"
	"github.com/sirosfoundation/go-chat-backend/internal/storage"
	"github.com/sirosfoundation/go-chat-backend/pkg/config"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserExists         = errors.New("email already exists")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenRevoked       = errors.New("token revoked")
)

// Claims is the payload of a session token
type Claims struct {
	UserID domain.UserID `json:"user_id"`
	jwt.RegisteredClaims
}

// UserService handles accounts and session tokens
type UserService struct {
	store     storage.Store
	cfg       *config.Config
	blacklist *TokenBlacklist
	logger    *zap.Logger
}

// NewUserService creates a new UserService
func NewUserService(store storage.Store, cfg *config.Config, blacklist *TokenBlacklist, logger *zap.Logger) *UserService {
	return &UserService{
		store:     store,
		cfg:       cfg,
		blacklist: blacklist,
		logger:    logger.Named("user-service"),
	}
}

// Signup creates an account and returns it with a fresh session token
func (s *UserService) Signup(ctx context.Context, req *domain.SignupRequest) (*domain.User, string, error) {
	email := domain.NormalizeEmail(req.Email)

	if _, err := s.store.Users().GetByEmail(ctx, email); err == nil {
		return nil, "", ErrUserExists
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, "", fmt.Errorf("failed to look up email: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash password: %w", err)
	}

	user := &domain.User{
		ID:           domain.NewUserID(),
		Email:        email,
		FullName:     strings.TrimSpace(req.FullName),
		PasswordHash: string(hash),
	}

	if err := s.store.Users().Create(ctx, user); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil, "", ErrUserExists
		}
		return nil, "", fmt.Errorf("failed to create user: %w", err)
	}

	token, err := s.GenerateToken(user.ID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate token: %w", err)
	}

	s.logger.Info("User signed up", zap.String("user_id", user.ID.String()))
	return user, token, nil
}

// Login checks credentials and returns the user with a fresh session token
func (s *UserService) Login(ctx context.Context, email, password string) (*domain.User, string, error) {
	user, err := s.store.Users().GetByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("failed to get user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.GenerateToken(user.ID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate token: %w", err)
	}

	return user, token, nil
}

// Logout revokes the given token. An unparseable token is ignored since the
// caller clears the cookie regardless.
func (s *UserService) Logout(ctx context.Context, token string) {
	claims, err := s.parse(token)
	if err != nil {
		return
	}
	var expiry time.Time
	if claims.ExpiresAt != nil {
		expiry = claims.ExpiresAt.Time
	}
	s.blacklist.Revoke(ctx, claims.ID, expiry)
}

// GetUserByID retrieves a user by ID
func (s *UserService) GetUserByID(ctx context.Context, id domain.UserID) (*domain.User, error) {
	return s.store.Users().GetByID(ctx, id)
}

// UpdateProfilePic replaces the user's profile picture
func (s *UserService) UpdateProfilePic(ctx context.Context, id domain.UserID, pic string) (*domain.User, error) {
	pic = strings.TrimSpace(pic)
	if pic == "" {
		return nil, storage.ErrInvalidInput
	}
	return s.store.Users().UpdateProfilePic(ctx, id, pic)
}

// ValidateToken verifies a session token and returns its claims
func (s *UserService) ValidateToken(ctx context.Context, tokenString string) (*Claims, error) {
	claims, err := s.parse(tokenString)
	if err != nil {
		return nil, err
	}
	if s.blacklist.IsRevoked(ctx, claims.ID) {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

// Authenticate resolves a session token to the user it was issued for
func (s *UserService) Authenticate(ctx context.Context, tokenString string) (domain.UserID, error) {
	claims, err := s.ValidateToken(ctx, tokenString)
	if err != nil {
		return "", err
	}
	return claims.UserID, nil
}

func (s *UserService) parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.cfg.JWT.Secret), nil
	}, jwt.WithIssuer(s.cfg.JWT.Issuer))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// GenerateToken issues a signed session token for the user
func (s *UserService) GenerateToken(id domain.UserID) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: id,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.cfg.JWT.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.TokenTTL())),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWT.Secret))
}

// TokenTTL is how long issued tokens (and their cookies) remain valid
func (s *UserService) TokenTTL() time.Duration {
	return time.Duration(s.cfg.JWT.ExpiryHours) * time.Hour
}
