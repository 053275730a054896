package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sirosfoundation/go-chat-backend/internal/domain"
	"github.com/sirosfoundation/go-chat-backend/internal/storage"
)

// Store implements an in-memory storage
type Store struct {
	users    *UserStore
	messages *MessageStore
}

// NewStore creates a new in-memory store
func NewStore() *Store {
	return &Store{
		users:    &UserStore{data: make(map[domain.UserID]*domain.User)},
		messages: &MessageStore{},
	}
}

func (s *Store) Users() storage.UserStore       { return s.users }
func (s *Store) Messages() storage.MessageStore { return s.messages }
func (s *Store) Close() error                   { return nil }
func (s *Store) Ping(ctx context.Context) error { return nil }

// UserStore implements in-memory user storage
type UserStore struct {
	mu   sync.RWMutex
	data map[domain.UserID]*domain.User
}

func (s *UserStore) Create(ctx context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[user.ID]; exists {
		return storage.ErrAlreadyExists
	}
	for _, u := range s.data {
		if u.Email == user.Email {
			return storage.ErrAlreadyExists
		}
	}

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	clone := *user
	s.data[user.ID] = &clone
	return nil
}

func (s *UserStore) GetByID(ctx context.Context, id domain.UserID) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	clone := *user
	return &clone, nil
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.data {
		if user.Email == email {
			clone := *user
			return &clone, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *UserStore) ListExcept(ctx context.Context, id domain.UserID) ([]*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]*domain.User, 0, len(s.data))
	for uid, user := range s.data {
		if uid == id {
			continue
		}
		clone := *user
		users = append(users, &clone)
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].CreatedAt.After(users[j].CreatedAt)
	})
	return users, nil
}

func (s *UserStore) UpdateProfilePic(ctx context.Context, id domain.UserID, pic string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	user.ProfilePic = pic
	user.UpdatedAt = time.Now()
	clone := *user
	return &clone, nil
}

// MessageStore implements in-memory message storage. Messages are kept in
// insertion order, which is also creation order.
type MessageStore struct {
	mu   sync.RWMutex
	data []*domain.Message
}

func (s *MessageStore) Create(ctx context.Context, msg *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	clone := *msg
	s.data = append(s.data, &clone)
	return nil
}

func (s *MessageStore) Conversation(ctx context.Context, a, b domain.UserID) ([]*domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Message
	for _, msg := range s.data {
		if (msg.SenderID == a && msg.ReceiverID == b) || (msg.SenderID == b && msg.ReceiverID == a) {
			clone := *msg
			result = append(result, &clone)
		}
	}
	return result, nil
}
