package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sirosfoundation/go-chat-backend/internal/domain"
	"github.com/sirosfoundation/go-chat-backend/internal/storage"
)

// EventNewMessage is pushed to a receiver when a message arrives for them
const EventNewMessage = "newMessage"

// Notifier delivers realtime events to connected users. Delivery is
// best-effort: a user who is offline simply misses the push.
type Notifier interface {
	Emit(userID domain.UserID, event string, payload any)
}

type nopNotifier struct{}

func (nopNotifier) Emit(domain.UserID, string, any) {}

// MessageService handles contacts and direct messages
type MessageService struct {
	store    storage.Store
	notifier Notifier
	logger   *zap.Logger
}

// NewMessageService creates a new MessageService
func NewMessageService(store storage.Store, logger *zap.Logger) *MessageService {
	return &MessageService{
		store:    store,
		notifier: nopNotifier{},
		logger:   logger.Named("message-service"),
	}
}

// SetNotifier attaches the realtime transport. A nil notifier disables pushes.
func (s *MessageService) SetNotifier(n Notifier) {
	if n == nil {
		n = nopNotifier{}
	}
	s.notifier = n
}

// ListContacts returns every user other than the caller
func (s *MessageService) ListContacts(ctx context.Context, me domain.UserID) ([]*domain.User, error) {
	return s.store.Users().ListExcept(ctx, me)
}

// Conversation returns the messages between the caller and another user
func (s *MessageService) Conversation(ctx context.Context, me, other domain.UserID) ([]*domain.Message, error) {
	return s.store.Messages().Conversation(ctx, me, other)
}

// Send stores a message from sender to receiver and pushes it to the
// receiver if they are online.
func (s *MessageService) Send(ctx context.Context, sender, receiver domain.UserID, req *domain.SendMessageRequest) (*domain.Message, error) {
	if req.IsEmpty() {
		return nil, storage.ErrInvalidInput
	}

	if _, err := s.store.Users().GetByID(ctx, receiver); err != nil {
		return nil, err
	}

	msg := &domain.Message{
		ID:         domain.NewMessageID(),
		SenderID:   sender,
		ReceiverID: receiver,
		Text:       req.Text,
		Image:      req.Image,
	}
	if err := s.store.Messages().Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to store message: %w", err)
	}

	s.notifier.Emit(receiver, EventNewMessage, msg)
	return msg, nil
}
