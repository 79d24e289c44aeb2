// Package service implements conversation operations on top of the store.
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/samber/lo"

	"github.com/xiaot623/roadchat/internal/domain"
	"github.com/xiaot623/roadchat/internal/store"
	"github.com/xiaot623/roadchat/policy"
)

// Authorizer evaluates the access policy.
type Authorizer interface {
	Allowed(ctx context.Context, input policy.Input) (bool, error)
}

// RoomJoiner subscribes every live connection of a user to a room.
type RoomJoiner interface {
	JoinUser(userEmail string, room domain.ConversationID)
}

// Service is the conversation service.
type Service struct {
	store        store.Store
	authz        Authorizer
	log          *slog.Logger
	requiredRole domain.Role
	rooms        RoomJoiner
}

func New(store store.Store, authz Authorizer, log *slog.Logger, requiredRole domain.Role) *Service {
	return &Service{
		store:        store,
		authz:        authz,
		log:          log,
		requiredRole: requiredRole,
	}
}

// SetRoomJoiner wires the realtime layer. It must be called before serving.
func (s *Service) SetRoomJoiner(rooms RoomJoiner) {
	s.rooms = rooms
}

// passthrough errors carry no storage detail and reach callers unchanged.
var passthrough = []error{
	domain.ErrValidation,
	domain.ErrConflict,
	domain.ErrNotOwnerOrMissing,
	domain.ErrConversationNotFound,
}

// storeError logs err with full context and returns what callers may see.
func (s *Service) storeError(ctx context.Context, op string, err error, attrs ...any) error {
	if lo.ContainsBy(passthrough, func(target error) bool { return errors.Is(err, target) }) {
		return err
	}
	s.log.ErrorContext(ctx, "store operation failed", append([]any{"op", op, "error", err}, attrs...)...)
	return domain.ErrStoreFailure
}
