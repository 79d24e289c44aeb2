package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/roadchat/internal/domain"
	"github.com/xiaot623/roadchat/internal/logging"
	"github.com/xiaot623/roadchat/policy"
)

type fakeStore struct {
	mu       sync.Mutex
	sessions map[string]domain.ClientSession
	err      error
	block    bool
}

func (f *fakeStore) Get(ctx context.Context, token string) (*domain.ClientSession, error) {
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	s, ok := f.sessions[token]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return &s, nil
}

func newTestVerifier(t *testing.T, store Store) (*Verifier, *Signer) {
	t.Helper()
	engine, err := policy.NewEngine(context.Background(), policy.DefaultPolicy)
	require.NoError(t, err)
	signer := NewSigner("secret")
	v := NewVerifier(VerifierConfig{
		CookieName:    "sessionId",
		RequiredRole:  "onroad",
		LookupTimeout: 50 * time.Millisecond,
	}, signer, store, engine, logging.Discard())
	return v, signer
}

func requestWithCookie(value string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	if value != "" {
		req.Header.Set("Cookie", "theme=dark; sessionId="+value)
	}
	return req
}

func TestVerifyAdmitsOnRoadSession(t *testing.T) {
	store := &fakeStore{sessions: map[string]domain.ClientSession{
		"tok": {UserEmail: "a@x.io", Role: domain.RoleOnRoad},
	}}
	v, signer := newTestVerifier(t, store)

	got, err := v.Verify(requestWithCookie(url.QueryEscape(signer.Sign("tok"))))
	require.NoError(t, err)
	assert.Equal(t, "a@x.io", got.UserEmail)
	assert.Equal(t, "tok", got.SessionToken)
}

func TestVerifyRejections(t *testing.T) {
	store := &fakeStore{sessions: map[string]domain.ClientSession{
		"normal": {UserEmail: "n@x.io", Role: domain.RoleNormal},
	}}
	v, signer := newTestVerifier(t, store)

	tests := []struct {
		name   string
		cookie string
		want   error
	}{
		{"no cookie", "", domain.ErrUnauthenticated},
		{"unsigned", "tok", domain.ErrMalformed},
		{"forged", NewSigner("other").Sign("tok"), domain.ErrMalformed},
		{"bad escape", "%zz", domain.ErrMalformed},
		{"unknown session", url.QueryEscape(signer.Sign("missing")), domain.ErrUnauthenticated},
		{"wrong role", url.QueryEscape(signer.Sign("normal")), domain.ErrUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := v.Verify(requestWithCookie(tt.cookie))
			assert.Nil(t, got)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestVerifyFailsClosedOnStoreError(t *testing.T) {
	v, signer := newTestVerifier(t, &fakeStore{err: errors.New("connection refused")})

	_, err := v.Verify(requestWithCookie(signer.Sign("tok")))
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestVerifyBoundedLookup(t *testing.T) {
	v, signer := newTestVerifier(t, &fakeStore{block: true})

	start := time.Now()
	_, err := v.Verify(requestWithCookie(signer.Sign("tok")))
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
	assert.Less(t, time.Since(start), time.Second)
}
