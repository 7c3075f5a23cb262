package auth

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSessionRepo struct {
	byHash  map[string]*Session
	findErr error
	revoked []string
}

func newMockSessionRepo() *mockSessionRepo {
	return &mockSessionRepo{byHash: make(map[string]*Session)}
}

func (m *mockSessionRepo) FindByHash(_ context.Context, hash string) (*Session, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	s, ok := m.byHash[hash]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

func (m *mockSessionRepo) Create(_ context.Context, userID, hash string, expiresAt *time.Time) (*Session, error) {
	s := &Session{ID: "sess-" + userID, UserID: userID, TokenHash: hash, ExpiresAt: expiresAt}
	m.byHash[hash] = s
	return s, nil
}

func (m *mockSessionRepo) Revoke(_ context.Context, sessionID string) error {
	m.revoked = append(m.revoked, sessionID)
	return nil
}

func TestHasher_Deterministic(t *testing.T) {
	a := NewHasher([]byte("pepper"))
	b := NewHasher([]byte("other"))

	assert.Equal(t, a.Hash("token"), a.Hash("token"))
	assert.NotEqual(t, a.Hash("token"), b.Hash("token"))
	assert.Len(t, a.Hash("token"), 64)
}

func TestAuthenticator_IssueAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	repo := newMockSessionRepo()
	a := NewAuthenticator(repo, NewHasher([]byte("pepper")))

	token, s, err := a.Issue(ctx, "alice", time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.NotNil(t, s.ExpiresAt)

	id, err := a.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, Identity{UserID: "alice", SessionID: "sess-alice"}, id)
}

func TestAuthenticator_Rejects(t *testing.T) {
	ctx := context.Background()
	repo := newMockSessionRepo()
	a := NewAuthenticator(repo, NewHasher([]byte("pepper")))
	token, _, err := a.Issue(ctx, "alice", time.Hour)
	require.NoError(t, err)

	_, err = a.Authenticate(ctx, "")
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = a.Authenticate(ctx, "unknown")
	require.ErrorIs(t, err, ErrUnauthorized)

	a.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = a.Authenticate(ctx, token)
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestAuthenticator_RepositoryError(t *testing.T) {
	repo := newMockSessionRepo()
	repo.findErr = errors.New("connection refused")
	a := NewAuthenticator(repo, NewHasher([]byte("pepper")))

	_, err := a.Authenticate(context.Background(), "token")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnauthorized)
}

func TestIdentityContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ctx := WithIdentity(context.Background(), Identity{UserID: "alice", SessionID: "s1"})
	id, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "alice", id.UserID)
}
