// Package auth resolves bearer session tokens to user identities.
package auth

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// ErrSessionNotFound is returned when no active session matches a token hash.
var ErrSessionNotFound = errors.New("session not found")

// Identity is the authenticated caller of a request.
type Identity struct {
	UserID    string
	SessionID string
}

// Session is a stored sign-in session. Only the HMAC of the bearer token is
// persisted.
type Session struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt *time.Time
}

// Expired reports whether the session has expired at now.
func (s *Session) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && !now.Before(*s.ExpiresAt)
}

// Repository stores sign-in sessions.
type Repository interface {
	// FindByHash returns the active session with the given token hash, or
	// ErrSessionNotFound.
	FindByHash(ctx context.Context, hash string) (*Session, error)
	// Create stores a session for userID.
	Create(ctx context.Context, userID, hash string, expiresAt *time.Time) (*Session, error)
	// Revoke marks the session as signed out.
	Revoke(ctx context.Context, sessionID string) error
}

type identityKey struct{}

// WithIdentity returns a context carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext returns the identity stored in ctx, if any.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok && id.UserID != ""
}
