package domain

// CreateChatRequest is the body of POST /chatDirectory/create.
type CreateChatRequest struct {
	UserEmail string `json:"userEmail" validate:"required,email"`
}

// GetChatRequest is the body of POST /chatDirectory/getChat.
type GetChatRequest struct {
	ChatID string `json:"chatId" validate:"required,len=36,chatid"`
}

// AddMessageRequest carries a new message. AuthorEmail is accepted on the
// wire for compatibility and never trusted.
type AddMessageRequest struct {
	ChatID      string `json:"chatId" validate:"required,len=36,chatid"`
	AuthorEmail string `json:"authorEmail,omitempty"`
	Message     string `json:"message" validate:"required"`
}

// EditMessageRequest replaces the body of an owned message.
type EditMessageRequest struct {
	ChatID     string `json:"chatId" validate:"required,len=36,chatid"`
	MessageID  string `json:"messageId" validate:"required,uuid"`
	NewMessage string `json:"newMessage" validate:"required"`
}

// DeleteMessageRequest soft-deletes an owned message.
type DeleteMessageRequest struct {
	ChatID    string `json:"chatId" validate:"required,len=36,chatid"`
	MessageID string `json:"messageId" validate:"required,uuid"`
}

// MessageEvent is the service-confirmed payload of a message mutation. It is
// what the gateway fans out to the other members of the room.
type MessageEvent struct {
	ChatID      ConversationID `json:"chatId"`
	MessageID   string         `json:"messageId"`
	AuthorEmail string         `json:"authorEmail"`
	Message     string         `json:"message,omitempty"`
	CreatedAt   int64          `json:"createdAt,omitempty"`
	Edited      bool           `json:"edited"`
	Deleted     bool           `json:"deleted"`
}

// NewMessageEvent describes a freshly appended message.
func NewMessageEvent(id ConversationID, m *Message) MessageEvent {
	return MessageEvent{
		ChatID:      id,
		MessageID:   m.ID.String(),
		AuthorEmail: m.AuthorEmail,
		Message:     m.Body,
		CreatedAt:   m.CreatedAt.UnixMilli(),
	}
}
