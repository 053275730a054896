// Package backend selects the storage implementation and exposes it as the
// DatabaseConnector used by the server lifecycle.
package backend

import (
	"context"
	"fmt"

	"github.com/sirosfoundation/go-chat-backend/internal/storage"
	"github.com/sirosfoundation/go-chat-backend/internal/storage/memory"
	"github.com/sirosfoundation/go-chat-backend/internal/storage/mongodb"
	"github.com/sirosfoundation/go-chat-backend/pkg/config"
)

// Type defines the type of storage backend
type Type string

const (
	// TypeMemory uses in-memory storage (for testing/development)
	TypeMemory Type = "memory"
	// TypeMongoDB uses MongoDB storage (for production)
	TypeMongoDB Type = "mongodb"
)

// Connector opens the persistence connection. Connect is called once, after
// the listener is bound; any error it returns is fatal.
type Connector interface {
	Connect(ctx context.Context) error
}

// Backend wraps storage stores with a common interface for lifecycle management
type Backend interface {
	Connector
	// Users returns the user store
	Users() storage.UserStore
	// Messages returns the message store
	Messages() storage.MessageStore
	// Ping checks if the storage is alive
	Ping(ctx context.Context) error
	// Close closes the storage connection
	Close() error
	// Type reports the backend kind for diagnostics
	Type() Type
}

// memoryBackend wraps the memory store to implement Backend
type memoryBackend struct {
	store *memory.Store
}

func (b *memoryBackend) Connect(ctx context.Context) error { return nil }
func (b *memoryBackend) Users() storage.UserStore          { return b.store.Users() }
func (b *memoryBackend) Messages() storage.MessageStore    { return b.store.Messages() }
func (b *memoryBackend) Ping(ctx context.Context) error    { return b.store.Ping(ctx) }
func (b *memoryBackend) Close() error                      { return b.store.Close() }
func (b *memoryBackend) Type() Type                        { return TypeMemory }

// mongoBackend wraps the MongoDB store to implement Backend
type mongoBackend struct {
	store *mongodb.Store
}

func (b *mongoBackend) Connect(ctx context.Context) error { return b.store.Connect(ctx) }
func (b *mongoBackend) Users() storage.UserStore          { return b.store.Users() }
func (b *mongoBackend) Messages() storage.MessageStore    { return b.store.Messages() }
func (b *mongoBackend) Ping(ctx context.Context) error    { return b.store.Ping(ctx) }
func (b *mongoBackend) Close() error                      { return b.store.Close() }
func (b *mongoBackend) Type() Type                        { return TypeMongoDB }

// New creates a storage backend based on the configuration. No connection
// is attempted here.
func New(cfg *config.Config) (Backend, error) {
	storageType := Type(cfg.Storage.Type)

	switch storageType {
	case TypeMongoDB, "":
		return &mongoBackend{store: mongodb.NewStore(&cfg.Storage.MongoDB)}, nil

	case TypeMemory:
		return NewMemory(), nil

	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageType)
	}
}

// NewMemory returns an always-ready in-memory backend
func NewMemory() Backend {
	return &memoryBackend{store: memory.NewStore()}
}
