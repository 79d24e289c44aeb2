// Package session admits requests and realtime connections from a signed
// session cookie backed by the key-value session store.
package session

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"
)

var errBadSignature = errors.New("bad cookie signature")

// Signer signs and unsigns cookie values in the cookie-signature format:
// value + "." + base64(HMAC-SHA256(secret, value)) without padding.
type Signer struct {
	secret []byte
}

// NewSigner creates a signer for the shared secret.
func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Sign returns the signed form of value.
func (s *Signer) Sign(value string) string {
	return value + "." + s.mac(value)
}

// Unsign verifies signed and returns the original value.
func (s *Signer) Unsign(signed string) (string, error) {
	idx := strings.LastIndexByte(signed, '.')
	if idx <= 0 || idx == len(signed)-1 {
		return "", errBadSignature
	}
	value := signed[:idx]
	expected := s.Sign(value)
	if !hmac.Equal([]byte(expected), []byte(signed)) {
		return "", errBadSignature
	}
	return value, nil
}

func (s *Signer) mac(value string) string {
	h := hmac.New(sha256.New, s.secret)
	h.Write([]byte(value))
	return strings.TrimRight(base64.StdEncoding.EncodeToString(h.Sum(nil)), "=")
}
