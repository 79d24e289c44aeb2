// Package protocol defines the WebSocket frames exchanged with chat clients.
package protocol

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/xiaot623/roadchat/internal/domain"
)

// Frame types sent by the gateway besides the friend* events.
const (
	TypeAck   = "ack"
	TypeError = "error"
)

// Error codes. They never carry storage or session internals.
const (
	ErrorCodeInvalidMessage = "invalid_message"
	ErrorCodeValidation     = "validation_failed"
	ErrorCodeNotFound       = "not_found"
	ErrorCodeNotJoined      = "not_joined"
	ErrorCodeInternalError  = "internal_error"
)

// Envelope is an inbound client frame. Data has the shape of the matching
// REST request body.
type Envelope struct {
	Type      domain.EventType `json:"type"`
	RequestID string           `json:"request_id,omitempty"`
	Data      json.RawMessage  `json:"data"`
}

// EventMessage is an outbound friend* frame.
type EventMessage struct {
	Type domain.EventType    `json:"type"`
	Ts   int64               `json:"ts"`
	Data domain.MessageEvent `json:"data"`
}

// AckMessage confirms an inbound frame that carried a request id.
type AckMessage struct {
	Type      string              `json:"type"`
	Ts        int64               `json:"ts"`
	RequestID string              `json:"request_id"`
	Data      domain.MessageEvent `json:"data"`
}

// ErrorMessage reports a failed inbound frame that carried a request id.
type ErrorMessage struct {
	Type      string `json:"type"`
	Ts        int64  `json:"ts"`
	RequestID string `json:"request_id,omitempty"`
	Code      string `json:"code"`
}

// FriendEvent maps an inbound type to the event fanned out to the room.
func FriendEvent(t domain.EventType) (domain.EventType, bool) {
	switch t {
	case domain.EventTypeMessage:
		return domain.EventTypeFriendMessage, true
	case domain.EventTypeEdit:
		return domain.EventTypeFriendEdit, true
	case domain.EventTypeDelete:
		return domain.EventTypeFriendDelete, true
	}
	return "", false
}

func NewEvent(t domain.EventType, ev domain.MessageEvent) EventMessage {
	return EventMessage{Type: t, Ts: time.Now().UnixMilli(), Data: ev}
}

func NewAck(requestID string, ev domain.MessageEvent) AckMessage {
	return AckMessage{Type: TypeAck, Ts: time.Now().UnixMilli(), RequestID: requestID, Data: ev}
}

func NewError(requestID, code string) ErrorMessage {
	return ErrorMessage{Type: TypeError, Ts: time.Now().UnixMilli(), RequestID: requestID, Code: code}
}

// ErrorCode classifies a service error for the wire.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return ErrorCodeValidation
	case errors.Is(err, domain.ErrNotOwnerOrMissing), errors.Is(err, domain.ErrConversationNotFound):
		return ErrorCodeNotFound
	default:
		return ErrorCodeInternalError
	}
}
