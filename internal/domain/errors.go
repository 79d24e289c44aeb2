package domain

import "errors"

var (
	// ErrValidation is returned for malformed identifiers or bodies.
	ErrValidation = errors.New("validation failed")
	// ErrMalformed is returned when a session cookie signature does not verify.
	ErrMalformed = errors.New("malformed session cookie")
	// ErrUnauthenticated is returned when no valid session backs the request.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrUnauthorized is returned when the session role is not allowed.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden is returned when the target user may not be contacted.
	ErrForbidden = errors.New("forbidden")
	// ErrConflict is returned when the conversation already exists.
	ErrConflict = errors.New("conversation already exists")
	// ErrNotOwnerOrMissing covers both an absent message and one owned by
	// another user. Callers must not tell the two apart.
	ErrNotOwnerOrMissing = errors.New("message does not exist or is not yours")
	// ErrConversationNotFound is returned when no log exists for an id.
	ErrConversationNotFound = errors.New("conversation not found")
	// ErrStoreFailure is the generic persistence fault surfaced to callers.
	ErrStoreFailure = errors.New("store failure")

	ErrSessionNotFound = errors.New("session not found")
	ErrUserNotFound    = errors.New("user not found")
)
