package auth

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"time"

	"github.com/go-faster/errors"
)

// ErrUnauthorized is returned for missing, unknown, expired or revoked tokens.
var ErrUnauthorized = errors.New("unauthorized")

// tokenBytes is the entropy of a generated session token.
const tokenBytes = 32

// Hasher derives token hashes with HMAC-SHA256 keyed by a server pepper.
type Hasher struct {
	pepper []byte
}

// NewHasher creates a Hasher with the given pepper.
func NewHasher(pepper []byte) *Hasher {
	return &Hasher{pepper: pepper}
}

func (h *Hasher) sum(token string) []byte {
	mac := hmac.New(sha256.New, h.pepper)
	mac.Write([]byte(token))
	return mac.Sum(nil)
}

// Hash returns the hex-encoded HMAC of token.
func (h *Hasher) Hash(token string) string {
	return hex.EncodeToString(h.sum(token))
}

// NewToken returns a random bearer token.
func NewToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, "read random")
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Authenticator resolves bearer tokens to identities.
type Authenticator struct {
	sessions Repository
	hasher   *Hasher
	now      func() time.Time
}

// NewAuthenticator creates an Authenticator backed by sessions.
func NewAuthenticator(sessions Repository, hasher *Hasher) *Authenticator {
	return &Authenticator{
		sessions: sessions,
		hasher:   hasher,
		now:      time.Now,
	}
}

// Authenticate looks the token's hash up and compares it with the stored
// hash in constant time.
func (a *Authenticator) Authenticate(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrUnauthorized
	}
	hash := a.hasher.sum(token)

	s, err := a.sessions.FindByHash(ctx, hex.EncodeToString(hash))
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return Identity{}, ErrUnauthorized
		}
		return Identity{}, errors.Wrap(err, "find session")
	}

	stored, err := hex.DecodeString(s.TokenHash)
	if err != nil || subtle.ConstantTimeCompare(hash, stored) != 1 {
		return Identity{}, ErrUnauthorized
	}
	if s.Expired(a.now()) {
		return Identity{}, ErrUnauthorized
	}

	return Identity{UserID: s.UserID, SessionID: s.ID}, nil
}

// Issue creates a session for userID and returns its bearer token.
func (a *Authenticator) Issue(ctx context.Context, userID string, ttl time.Duration) (string, *Session, error) {
	token, err := NewToken()
	if err != nil {
		return "", nil, err
	}
	var expiresAt *time.Time
	if ttl > 0 {
		t := a.now().Add(ttl)
		expiresAt = &t
	}
	s, err := a.sessions.Create(ctx, userID, a.hasher.Hash(token), expiresAt)
	if err != nil {
		return "", nil, errors.Wrap(err, "create session")
	}
	return token, s, nil
}

// Revoke signs the session out.
func (a *Authenticator) Revoke(ctx context.Context, id Identity) error {
	if err := a.sessions.Revoke(ctx, id.SessionID); err != nil {
		return errors.Wrap(err, "revoke session")
	}
	return nil
}
