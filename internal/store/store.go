// Package store persists chat directories and per-conversation message logs.
package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/xiaot623/roadchat/internal/domain"
)

// Store defines the interface for chat persistence.
type Store interface {
	// Users
	GetUserRole(ctx context.Context, email string) (domain.Role, error)
	UpsertUser(ctx context.Context, email string, role domain.Role) error

	// Chat directory
	CreateConversation(ctx context.Context, ownerEmail, peerEmail string) (domain.ConversationID, error)
	ListConversations(ctx context.Context, userEmail string) ([]domain.ConversationRef, error)
	IsParticipant(ctx context.Context, id domain.ConversationID, userEmail string) (bool, error)

	// Message logs
	Provision(ctx context.Context, id domain.ConversationID) error
	Append(ctx context.Context, id domain.ConversationID, authorEmail, body string) (*domain.Message, error)
	Fetch(ctx context.Context, id domain.ConversationID) ([]domain.Message, error)
	Edit(ctx context.Context, id domain.ConversationID, messageID uuid.UUID, authorEmail, body string) error
	SoftDelete(ctx context.Context, id domain.ConversationID, messageID uuid.UUID, authorEmail string) error

	Close() error
}
