package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/xiaot623/roadchat/internal/domain"
	"github.com/xiaot623/roadchat/policy"
)

// CreateChat opens a conversation between the session user and peerEmail.
// Both users must hold the required role.
func (s *Service) CreateChat(ctx context.Context, sess *domain.ClientSession, peerEmail string) (domain.ConversationID, error) {
	peerEmail = strings.TrimSpace(peerEmail)
	if peerEmail == "" || strings.EqualFold(peerEmail, sess.UserEmail) {
		return "", fmt.Errorf("%w: a conversation needs another user", domain.ErrValidation)
	}

	peerRole, err := s.store.GetUserRole(ctx, peerEmail)
	if errors.Is(err, domain.ErrUserNotFound) {
		return "", domain.ErrForbidden
	}
	if err != nil {
		return "", s.storeError(ctx, "get_user_role", err, "peer", peerEmail)
	}

	allowed, err := s.authz.Allowed(ctx, policy.Input{
		Action:       domain.ActionCreateChat,
		Role:         string(sess.Role),
		PeerRole:     string(peerRole),
		RequiredRole: string(s.requiredRole),
	})
	if err != nil {
		s.log.ErrorContext(ctx, "policy evaluation failed",
			"action", domain.ActionCreateChat, "owner", sess.UserEmail, "peer", peerEmail, "error", err)
		return "", domain.ErrStoreFailure
	}
	if !allowed {
		return "", domain.ErrForbidden
	}

	id, err := s.store.CreateConversation(ctx, sess.UserEmail, peerEmail)
	if err != nil {
		return "", s.storeError(ctx, "create_conversation", err, "owner", sess.UserEmail, "peer", peerEmail)
	}
	s.log.InfoContext(ctx, "conversation created", "chat_id", id, "owner", sess.UserEmail, "peer", peerEmail)

	if s.rooms != nil {
		s.rooms.JoinUser(sess.UserEmail, id)
		s.rooms.JoinUser(peerEmail, id)
	}
	return id, nil
}

// GetChats returns the user's directory, oldest conversation first.
func (s *Service) GetChats(ctx context.Context, userEmail string) ([]domain.ConversationRef, error) {
	refs, err := s.store.ListConversations(ctx, userEmail)
	if err != nil {
		return nil, s.storeError(ctx, "list_conversations", err, "user", userEmail)
	}
	return refs, nil
}

// ConversationIDs extracts the ids of refs.
func ConversationIDs(refs []domain.ConversationRef) []domain.ConversationID {
	return lo.Map(refs, func(ref domain.ConversationRef, _ int) domain.ConversationID {
		return ref.ConversationID
	})
}

// GetChat returns the conversation's messages, newest first.
func (s *Service) GetChat(ctx context.Context, sess *domain.ClientSession, rawID string) ([]domain.Message, error) {
	id, err := s.authorizeConversation(ctx, sess, rawID)
	if err != nil {
		return nil, err
	}
	messages, err := s.store.Fetch(ctx, id)
	if err != nil {
		return nil, s.storeError(ctx, "fetch", err, "chat_id", id)
	}
	return messages, nil
}

// CheckParticipant reports domain.ErrNotOwnerOrMissing unless the session
// user's directory holds id.
func (s *Service) CheckParticipant(ctx context.Context, sess *domain.ClientSession, id domain.ConversationID) error {
	ok, err := s.store.IsParticipant(ctx, id, sess.UserEmail)
	if err != nil {
		return s.storeError(ctx, "is_participant", err, "chat_id", id, "user", sess.UserEmail)
	}
	if !ok {
		return domain.ErrNotOwnerOrMissing
	}
	return nil
}

func (s *Service) authorizeConversation(ctx context.Context, sess *domain.ClientSession, rawID string) (domain.ConversationID, error) {
	id, err := domain.ParseConversationID(rawID)
	if err != nil {
		return "", err
	}
	if err := s.CheckParticipant(ctx, sess, id); err != nil {
		return "", err
	}
	return id, nil
}
