package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ConversationIDLength is the fixed length of a rendered conversation id.
const ConversationIDLength = 36

var conversationIDPattern = regexp.MustCompile(`^[0-9a-f]{8}_[0-9a-f]{4}_[0-9a-f]{4}_[0-9a-f]{4}_[0-9a-f]{12}$`)

// ConversationID identifies a conversation and names its message log.
// Values are only produced by NewConversationID and ParseConversationID.
type ConversationID string

// NewConversationID returns a fresh random id.
func NewConversationID() ConversationID {
	return ConversationID(strings.ReplaceAll(uuid.NewString(), "-", "_"))
}

// ParseConversationID validates raw against the fixed-length hex/underscore
// alphabet. It is the injection guard for the dynamically named log.
func ParseConversationID(raw string) (ConversationID, error) {
	if len(raw) != ConversationIDLength || !conversationIDPattern.MatchString(raw) {
		return "", fmt.Errorf("%w: malformed conversation id", ErrValidation)
	}
	return ConversationID(raw), nil
}

// Valid reports whether id still matches the safe token format.
func (id ConversationID) Valid() bool {
	return len(id) == ConversationIDLength && conversationIDPattern.MatchString(string(id))
}

func (id ConversationID) String() string {
	return string(id)
}

// ConversationRef is one entry of a user's chat directory.
type ConversationRef struct {
	ConversationID   ConversationID `json:"chatId"`
	PeerEmail        string         `json:"userEmail"`
	CreatedAt        time.Time      `json:"createdAt"`
	InitiatedByOwner bool           `json:"createdByMe"`
}

// Message is a row of a conversation's message log.
type Message struct {
	ID          uuid.UUID `json:"id"`
	Body        string    `json:"message"`
	AuthorEmail string    `json:"authorEmail"`
	CreatedAt   time.Time `json:"createdAt"`
	Edited      bool      `json:"edited"`
	Deleted     bool      `json:"deleted"`
}
