package storage

import (
	"context"
	"errors"

	"github.com/sirosfoundation/go-chat-backend/internal/domain"
)

// Common errors
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidInput  = errors.New("invalid input")
	// ErrNotReady is returned by every store call made before the database
	// connection has been established.
	ErrNotReady = errors.New("database not ready")
)

// UserStore defines the interface for user storage operations
type UserStore interface {
	// Create creates a new user
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by ID
	GetByID(ctx context.Context, id domain.UserID) (*domain.User, error)

	// GetByEmail retrieves a user by normalized email
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// ListExcept returns all users other than the given one, newest first
	ListExcept(ctx context.Context, id domain.UserID) ([]*domain.User, error)

	// UpdateProfilePic sets the user's profile picture and returns the updated user
	UpdateProfilePic(ctx context.Context, id domain.UserID, pic string) (*domain.User, error)
}

// MessageStore defines the interface for message storage operations
type MessageStore interface {
	// Create stores a new message
	Create(ctx context.Context, msg *domain.Message) error

	// Conversation returns the messages exchanged between two users, oldest first
	Conversation(ctx context.Context, a, b domain.UserID) ([]*domain.Message, error)
}

// Store aggregates all storage interfaces
type Store interface {
	Users() UserStore
	Messages() MessageStore
	Close() error
	Ping(ctx context.Context) error
}
