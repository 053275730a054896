package mongodb

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sirosfoundation/go-chat-backend/internal/domain"
	"github.com/sirosfoundation/go-chat-backend/internal/storage"
	"github.com/sirosfoundation/go-chat-backend/pkg/config"
)

const (
	usersCollection    = "users"
	messagesCollection = "messages"
)

// ErrClosed is returned by Connect once Close has been called
var ErrClosed = errors.New("mongodb store closed")

// Store implements MongoDB storage. It is constructed without I/O; the
// connection is opened by Connect, and until then every store call returns
// storage.ErrNotReady.
type Store struct {
	cfg *config.MongoDBConfig

	mu       sync.RWMutex
	client   *mongo.Client
	database *mongo.Database
	closed   bool

	// connected runs between a successful dial and publishing the client
	connected func()

	users    *UserStore
	messages *MessageStore
}

// NewStore creates a new, unconnected MongoDB store
func NewStore(cfg *config.MongoDBConfig) *Store {
	s := &Store{cfg: cfg}
	s.users = &UserStore{store: s}
	s.messages = &MessageStore{store: s}
	return s
}

// Connect opens the client, verifies it with a ping and creates indexes.
// The configured timeout bounds server selection and the initial ping.
func (s *Store) Connect(ctx context.Context) error {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return ErrClosed
	}

	timeout := time.Duration(s.cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	clientOptions := options.Client().
		ApplyURI(s.cfg.URI).
		SetConnectTimeout(timeout).
		SetServerSelectionTimeout(timeout)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	database := client.Database(s.cfg.Database)
	if err := createIndexes(ctx, database); err != nil {
		_ = client.Disconnect(context.Background())
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	if s.connected != nil {
		s.connected()
	}

	// Close may have run while we were dialing; it found no client to
	// disconnect, so this one must not be published.
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = client.Disconnect(context.Background())
		return ErrClosed
	}
	s.client = client
	s.database = database
	s.mu.Unlock()

	return nil
}

func createIndexes(ctx context.Context, database *mongo.Database) error {
	_, err := database.Collection(usersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create user indexes: %w", err)
	}

	_, err = database.Collection(messagesCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "sender_id", Value: 1}, {Key: "receiver_id", Value: 1}, {Key: "created_at", Value: 1}}},
		{Keys: bson.D{{Key: "receiver_id", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create message indexes: %w", err)
	}

	return nil
}

// collection returns the named collection once connected
func (s *Store) collection(name string) (*mongo.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.database == nil {
		return nil, storage.ErrNotReady
	}
	return s.database.Collection(name), nil
}

func (s *Store) Users() storage.UserStore       { return s.users }
func (s *Store) Messages() storage.MessageStore { return s.messages }

func (s *Store) Close() error {
	s.mu.Lock()
	client := s.client
	s.client = nil
	s.database = nil
	s.closed = true
	s.mu.Unlock()

	if client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return client.Disconnect(ctx)
}

func (s *Store) Ping(ctx context.Context) error {
	s.mu.RLock()
	client := s.client
	s.mu.RUnlock()

	if client == nil {
		return storage.ErrNotReady
	}
	return client.Ping(ctx, nil)
}

// UserStore implements MongoDB user storage
type UserStore struct {
	store *Store
}

func (s *UserStore) Create(ctx context.Context, user *domain.User) error {
	coll, err := s.store.collection(usersCollection)
	if err != nil {
		return err
	}

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	if _, err := coll.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (s *UserStore) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	coll, err := s.store.collection(usersCollection)
	if err != nil {
		return nil, err
	}

	var user domain.User
	if err := coll.FindOne(ctx, filter).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (s *UserStore) GetByID(ctx context.Context, id domain.UserID) (*domain.User, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.findOne(ctx, bson.M{"email": email})
}

func (s *UserStore) ListExcept(ctx context.Context, id domain.UserID) ([]*domain.User, error) {
	coll, err := s.store.collection(usersCollection)
	if err != nil {
		return nil, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetProjection(bson.M{"password_hash": 0})
	cursor, err := coll.Find(ctx, bson.M{"_id": bson.M{"$ne": id}}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer cursor.Close(ctx)

	users := make([]*domain.User, 0)
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("failed to decode users: %w", err)
	}
	return users, nil
}

func (s *UserStore) UpdateProfilePic(ctx context.Context, id domain.UserID, pic string) (*domain.User, error) {
	coll, err := s.store.collection(usersCollection)
	if err != nil {
		return nil, err
	}

	update := bson.M{"$set": bson.M{"profile_pic": pic, "updated_at": time.Now()}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var user domain.User
	if err := coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return &user, nil
}

// MessageStore implements MongoDB message storage
type MessageStore struct {
	store *Store
}

func (s *MessageStore) Create(ctx context.Context, msg *domain.Message) error {
	coll, err := s.store.collection(messagesCollection)
	if err != nil {
		return err
	}

	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	if _, err := coll.InsertOne(ctx, msg); err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

func (s *MessageStore) Conversation(ctx context.Context, a, b domain.UserID) ([]*domain.Message, error) {
	coll, err := s.store.collection(messagesCollection)
	if err != nil {
		return nil, err
	}

	filter := bson.M{"$or": bson.A{
		bson.M{"sender_id": a, "receiver_id": b},
		bson.M{"sender_id": b, "receiver_id": a},
	}}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})

	cursor, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversation: %w", err)
	}
	defer cursor.Close(ctx)

	messages := make([]*domain.Message, 0)
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, fmt.Errorf("failed to decode messages: %w", err)
	}
	return messages, nil
}
