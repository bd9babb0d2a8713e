package storage

import (
	"context"
	"time"
)

// Message is one durable conversation message.
//
// Rows are append-only: the chat service writes a message on receipt and
// never mutates it afterwards.
type Message struct {
	ID             string
	ConversationID string
	Body           string
	SenderID       string
	RecipientID    string
	CreatedAt      time.Time
}

// User is the identity record the connection authenticator resolves
// token subjects against. The rental platform's account service owns
// these rows; the chat service syncs and reads them.
type User struct {
	ID          string
	DisplayName string
	CreatedAt   time.Time
}

// AppendMessageInput describes a message to persist.
type AppendMessageInput struct {
	ConversationID string
	Body           string
	SenderID       string
	RecipientID    string
}

// Store is the persistence contract consumed by the chat service.
type Store interface {
	Close() error
	AppendMessage(ctx context.Context, input AppendMessageInput) (Message, error)
	ListMessages(ctx context.Context, conversationID string) ([]Message, error)
	GetUser(ctx context.Context, userID string) (User, bool, error)
	PutUser(ctx context.Context, user User) error
}
