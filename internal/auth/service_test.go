package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ledgerline/ledgerline/internal/users"
)

type memoryUsers struct {
	byEmail map[string]users.User
}

func (m *memoryUsers) FindByEmail(ctx context.Context, email string) (users.User, error) {
	if u, ok := m.byEmail[email]; ok {
		return u, nil
	}
	return users.User{}, users.ErrNotFound
}

func (m *memoryUsers) Get(ctx context.Context, id int64) (users.User, error) {
	for _, u := range m.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return users.User{}, users.ErrNotFound
}

type memoryTokens struct {
	byHash map[string]Token
	nextID int64
}

func newMemoryTokens() *memoryTokens {
	return &memoryTokens{byHash: make(map[string]Token)}
}

func (m *memoryTokens) Insert(ctx context.Context, token Token) (Token, error) {
	m.nextID++
	token.ID = m.nextID
	token.CreatedAt = time.Now().UTC()
	m.byHash[token.TokenHash] = token
	return token, nil
}

func (m *memoryTokens) FindByHash(ctx context.Context, hash string) (Token, error) {
	if t, ok := m.byHash[hash]; ok {
		return t, nil
	}
	return Token{}, ErrInvalidToken
}

func (m *memoryTokens) TouchLastUsed(ctx context.Context, id int64, at time.Time) error {
	for hash, t := range m.byHash {
		if t.ID == id {
			t.LastUsedAt = &at
			m.byHash[hash] = t
		}
	}
	return nil
}

func (m *memoryTokens) DeleteByHash(ctx context.Context, hash string) error {
	delete(m.byHash, hash)
	return nil
}

func (m *memoryTokens) DeleteForUser(ctx context.Context, userID int64) error {
	for hash, t := range m.byHash {
		if t.UserID == userID {
			delete(m.byHash, hash)
		}
	}
	return nil
}

func (m *memoryTokens) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	var n int64
	for hash, t := range m.byHash {
		if t.ExpiresAt != nil && t.ExpiresAt.Before(before) {
			delete(m.byHash, hash)
			n++
		}
	}
	return n, nil
}

func seedUser(t *testing.T, store *memoryUsers, id int64, email, password, role string, active bool) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	store.byEmail[email] = users.User{
		ID: id, Name: "Test", Email: email, PasswordHash: string(hash), Role: role, IsActive: active,
	}
}

func TestLoginAndAuthenticate(t *testing.T) {
	userStore := &memoryUsers{byEmail: make(map[string]users.User)}
	seedUser(t, userStore, 1, "ops@example.com", "secret-pass", users.RoleManager, true)
	svc := NewService(userStore, newMemoryTokens(), 0)
	ctx := context.Background()

	user, token, err := svc.Login(ctx, "ops@example.com", "secret-pass", "api")
	require.NoError(t, err)
	require.Equal(t, int64(1), user.ID)
	require.NotEmpty(t, token)

	actor, err := svc.Authenticate(ctx, token)
	require.NoError(t, err)
	require.Equal(t, int64(1), actor.ID)
	require.Equal(t, "manager", actor.Role)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	userStore := &memoryUsers{byEmail: make(map[string]users.User)}
	seedUser(t, userStore, 1, "ops@example.com", "secret-pass", users.RoleManager, true)
	seedUser(t, userStore, 2, "gone@example.com", "secret-pass", users.RoleStaff, false)
	svc := NewService(userStore, newMemoryTokens(), 0)
	ctx := context.Background()

	_, _, err := svc.Login(ctx, "ops@example.com", "wrong-pass", "api")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.Login(ctx, "missing@example.com", "secret-pass", "api")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.Login(ctx, "gone@example.com", "secret-pass", "api")
	require.ErrorIs(t, err, ErrInvalidCredentials, "inactive accounts cannot sign in")
}

func TestLogoutRevokesToken(t *testing.T) {
	userStore := &memoryUsers{byEmail: make(map[string]users.User)}
	seedUser(t, userStore, 1, "ops@example.com", "secret-pass", users.RoleAdmin, true)
	svc := NewService(userStore, newMemoryTokens(), 0)
	ctx := context.Background()

	_, token, err := svc.Login(ctx, "ops@example.com", "secret-pass", "api")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, token))
	_, err = svc.Authenticate(ctx, token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthenticateExpiredToken(t *testing.T) {
	userStore := &memoryUsers{byEmail: make(map[string]users.User)}
	seedUser(t, userStore, 1, "ops@example.com", "secret-pass", users.RoleAdmin, true)
	tokens := newMemoryTokens()
	svc := NewService(userStore, tokens, time.Nanosecond)
	ctx := context.Background()

	_, token, err := svc.Login(ctx, "ops@example.com", "secret-pass", "api")
	require.NoError(t, err)

	time.Sleep(time.Millisecond)
	_, err = svc.Authenticate(ctx, token)
	require.ErrorIs(t, err, ErrInvalidToken)

	purged, err := svc.PurgeExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), purged)
}

func TestAuthenticateDeactivatedUser(t *testing.T) {
	userStore := &memoryUsers{byEmail: make(map[string]users.User)}
	seedUser(t, userStore, 1, "ops@example.com", "secret-pass", users.RoleAdmin, true)
	svc := NewService(userStore, newMemoryTokens(), 0)
	ctx := context.Background()

	_, token, err := svc.Login(ctx, "ops@example.com", "secret-pass", "api")
	require.NoError(t, err)

	deactivated := userStore.byEmail["ops@example.com"]
	deactivated.IsActive = false
	userStore.byEmail["ops@example.com"] = deactivated

	_, err = svc.Authenticate(ctx, token)
	require.ErrorIs(t, err, ErrInvalidToken, "tokens of deactivated accounts stop working")
}
