// Package domain defines the core domain models for the chat service.
package domain

// Role is the user type attached to a session or a user account.
type Role string

const (
	RoleOnRoad Role = "onroad"
	RoleNormal Role = "normal"
)

// Action names evaluated by the access policy.
const (
	ActionConnect    = "connect"
	ActionCreateChat = "create_chat"
)

// EventType is the name of a realtime event.
type EventType string

const (
	// Inbound, client to gateway.
	EventTypeMessage EventType = "msg"
	EventTypeEdit    EventType = "edit"
	EventTypeDelete  EventType = "delete"

	// Outbound, gateway to the other room members.
	EventTypeFriendMessage EventType = "friendMessage"
	EventTypeFriendEdit    EventType = "friendEdit"
	EventTypeFriendDelete  EventType = "friendDelete"
)
