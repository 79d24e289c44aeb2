package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/xiaot623/roadchat/internal/domain"
	"github.com/xiaot623/roadchat/policy"
)

// Authorizer decides whether a role may perform an action.
type Authorizer interface {
	Allowed(ctx context.Context, input policy.Input) (bool, error)
}

// VerifierConfig holds the admission settings.
type VerifierConfig struct {
	CookieName    string
	RequiredRole  string
	LookupTimeout time.Duration
}

// Verifier admits or rejects a request from its session cookie. It fails
// closed: any fault not classified below is reported as ErrUnauthenticated.
type Verifier struct {
	cfg    VerifierConfig
	signer *Signer
	store  Store
	authz  Authorizer
	log    *slog.Logger
}

// NewVerifier creates a verifier.
func NewVerifier(cfg VerifierConfig, signer *Signer, store Store, authz Authorizer, log *slog.Logger) *Verifier {
	if cfg.CookieName == "" {
		cfg.CookieName = "sessionId"
	}
	if cfg.LookupTimeout <= 0 {
		cfg.LookupTimeout = 2 * time.Second
	}
	return &Verifier{cfg: cfg, signer: signer, store: store, authz: authz, log: log}
}

// Verify returns the admitted session, or one of domain.ErrMalformed,
// domain.ErrUnauthenticated and domain.ErrUnauthorized.
func (v *Verifier) Verify(r *http.Request) (*domain.ClientSession, error) {
	cookie, err := r.Cookie(v.cfg.CookieName)
	if err != nil || cookie.Value == "" {
		v.log.Warn("rejecting request without session cookie", "remote", r.RemoteAddr)
		return nil, domain.ErrUnauthenticated
	}

	raw, err := url.PathUnescape(cookie.Value)
	if err != nil {
		v.log.Warn("rejecting undecodable session cookie", "remote", r.RemoteAddr)
		return nil, domain.ErrMalformed
	}
	token, err := v.signer.Unsign(raw)
	if err != nil {
		v.log.Warn("rejecting malformed session cookie", "remote", r.RemoteAddr)
		return nil, domain.ErrMalformed
	}

	ctx, cancel := context.WithTimeout(r.Context(), v.cfg.LookupTimeout)
	defer cancel()

	s, err := v.store.Get(ctx, token)
	if errors.Is(err, domain.ErrSessionNotFound) {
		v.log.Warn("rejecting unknown session", "remote", r.RemoteAddr)
		return nil, domain.ErrUnauthenticated
	}
	if err != nil {
		v.log.Error("session lookup failed", "remote", r.RemoteAddr, "error", err)
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
	}

	ok, err := v.authz.Allowed(ctx, policy.Input{
		Action:       domain.ActionConnect,
		Role:         string(s.Role),
		RequiredRole: v.cfg.RequiredRole,
	})
	if err != nil {
		v.log.Error("policy evaluation failed", "user", s.UserEmail, "error", err)
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
	}
	if !ok {
		v.log.Warn("rejecting session without required role", "user", s.UserEmail, "role", s.Role)
		return nil, domain.ErrUnauthorized
	}

	// Detach from the caller's copy so the admitted session cannot be mutated.
	admitted := *s
	admitted.SessionToken = token
	return &admitted, nil
}
