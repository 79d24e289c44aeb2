package validation

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/xiaot623/roadchat/internal/domain"
)

func TestValidate(t *testing.T) {
	v := New()
	id := domain.NewConversationID().String()

	tests := []struct {
		name    string
		req     any
		wantErr bool
	}{
		{"create ok", &domain.CreateChatRequest{UserEmail: "b@x.io"}, false},
		{"create bad email", &domain.CreateChatRequest{UserEmail: "nope"}, true},
		{"get ok", &domain.GetChatRequest{ChatID: id}, false},
		{"get dashed uuid", &domain.GetChatRequest{ChatID: uuid.NewString()}, true},
		{"get injection", &domain.GetChatRequest{ChatID: "x; DROP TABLE users; --"}, true},
		{"add ok", &domain.AddMessageRequest{ChatID: id, Message: "hi"}, false},
		{"add empty body", &domain.AddMessageRequest{ChatID: id}, true},
		{"edit ok", &domain.EditMessageRequest{ChatID: id, MessageID: uuid.NewString(), NewMessage: "x"}, false},
		{"edit bad message id", &domain.EditMessageRequest{ChatID: id, MessageID: "42", NewMessage: "x"}, true},
		{"delete ok", &domain.DeleteMessageRequest{ChatID: id, MessageID: uuid.NewString()}, false},
		{"delete missing chat", &domain.DeleteMessageRequest{MessageID: uuid.NewString()}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.req)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrValidation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateNamesFields(t *testing.T) {
	err := New().Validate(&domain.AddMessageRequest{})
	assert.ErrorContains(t, err, "ChatID(required)")
	assert.ErrorContains(t, err, "Message(required)")
}
