// Package helpers holds fixtures shared by package tests.
package helpers

import (
	"context"
	"sync"
	"testing"

	"github.com/xiaot623/roadchat/internal/domain"
	"github.com/xiaot623/roadchat/internal/store"
)

func NewTestSQLiteStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create sqlite store: %v", err)
	}

	t.Cleanup(func() {
		_ = s.Close()
	})

	return s
}

// SeedUsers registers accounts with the given roles.
func SeedUsers(t *testing.T, s store.Store, users map[string]domain.Role) {
	t.Helper()
	for email, role := range users {
		if err := s.UpsertUser(context.Background(), email, role); err != nil {
			t.Fatalf("failed to seed user %s: %v", email, err)
		}
	}
}

// SessionStore is an in-memory session lookup keyed by unsigned token.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]domain.ClientSession
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]domain.ClientSession)}
}

func (s *SessionStore) Put(token string, sess domain.ClientSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[token] = sess
}

func (s *SessionStore) Get(_ context.Context, token string) (*domain.ClientSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[token]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return &sess, nil
}
