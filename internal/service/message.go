package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/xiaot623/roadchat/internal/domain"
)

// AddMessage appends a message authored by the session user. Any author
// carried by the request is ignored.
func (s *Service) AddMessage(ctx context.Context, sess *domain.ClientSession, req domain.AddMessageRequest) (*domain.Message, error) {
	if req.Message == "" {
		return nil, fmt.Errorf("%w: empty message", domain.ErrValidation)
	}
	id, err := s.authorizeConversation(ctx, sess, req.ChatID)
	if err != nil {
		return nil, err
	}
	msg, err := s.store.Append(ctx, id, sess.UserEmail, req.Message)
	if err != nil {
		return nil, s.storeError(ctx, "append", err, "chat_id", id)
	}
	return msg, nil
}

// EditMessage replaces the body of a live message the session user wrote.
func (s *Service) EditMessage(ctx context.Context, sess *domain.ClientSession, req domain.EditMessageRequest) (*domain.MessageEvent, error) {
	if req.NewMessage == "" {
		return nil, fmt.Errorf("%w: empty message", domain.ErrValidation)
	}
	messageID, err := parseMessageID(req.MessageID)
	if err != nil {
		return nil, err
	}
	id, err := s.authorizeConversation(ctx, sess, req.ChatID)
	if err != nil {
		return nil, err
	}
	if err := s.store.Edit(ctx, id, messageID, sess.UserEmail, req.NewMessage); err != nil {
		return nil, s.storeError(ctx, "edit", err, "chat_id", id, "message_id", messageID)
	}
	return &domain.MessageEvent{
		ChatID:      id,
		MessageID:   messageID.String(),
		AuthorEmail: sess.UserEmail,
		Message:     req.NewMessage,
		Edited:      true,
	}, nil
}

// DeleteMessage soft-deletes a live message the session user wrote.
func (s *Service) DeleteMessage(ctx context.Context, sess *domain.ClientSession, req domain.DeleteMessageRequest) (*domain.MessageEvent, error) {
	messageID, err := parseMessageID(req.MessageID)
	if err != nil {
		return nil, err
	}
	id, err := s.authorizeConversation(ctx, sess, req.ChatID)
	if err != nil {
		return nil, err
	}
	if err := s.store.SoftDelete(ctx, id, messageID, sess.UserEmail); err != nil {
		return nil, s.storeError(ctx, "soft_delete", err, "chat_id", id, "message_id", messageID)
	}
	return &domain.MessageEvent{
		ChatID:      id,
		MessageID:   messageID.String(),
		AuthorEmail: sess.UserEmail,
		Deleted:     true,
	}, nil
}

func parseMessageID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: malformed message id", domain.ErrValidation)
	}
	return id, nil
}
