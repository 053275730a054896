package domain

import (
	"time"

	"github.com/google/uuid"
)

// MessageID represents a unique message identifier
type MessageID string

// NewMessageID creates a new message ID
func NewMessageID() MessageID {
	return MessageID(uuid.New().String())
}

// Message is a direct message between two users
type Message struct {
	ID         MessageID `json:"_id" bson:"_id"`
	SenderID   UserID    `json:"senderId" bson:"sender_id"`
	ReceiverID UserID    `json:"receiverId" bson:"receiver_id"`
	Text       string    `json:"text,omitempty" bson:"text,omitempty"`
	Image      string    `json:"image,omitempty" bson:"image,omitempty"`
	CreatedAt  time.Time `json:"createdAt" bson:"created_at"`
}

// SendMessageRequest is the body of a send request. At least one of the
// fields must be non-empty.
type SendMessageRequest struct {
	Text  string `json:"text"`
	Image string `json:"image"`
}

// IsEmpty reports whether the request carries no content
func (r *SendMessageRequest) IsEmpty() bool {
	return r.Text == "" && r.Image == ""
}
