package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/ledgerline/ledgerline/internal/shared"
	"github.com/ledgerline/ledgerline/internal/users"
)

// UserPort is the slice of the users module the auth flow needs.
type UserPort interface {
	FindByEmail(ctx context.Context, email string) (users.User, error)
	Get(ctx context.Context, id int64) (users.User, error)
}

// TokenPort abstracts token persistence.
type TokenPort interface {
	Insert(ctx context.Context, token Token) (Token, error)
	FindByHash(ctx context.Context, hash string) (Token, error)
	TouchLastUsed(ctx context.Context, id int64, at time.Time) error
	DeleteByHash(ctx context.Context, hash string) error
	DeleteForUser(ctx context.Context, userID int64) error
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// Service wraps authentication rules: password checks and API token
// issue/verify/revoke.
type Service struct {
	users    UserPort
	tokens   TokenPort
	tokenTTL time.Duration
}

// NewService constructs Service. tokenTTL zero means tokens never expire.
func NewService(users UserPort, tokens TokenPort, tokenTTL time.Duration) *Service {
	return &Service{users: users, tokens: tokens, tokenTTL: tokenTTL}
}

// Login validates credentials and issues a fresh API token. The returned
// plaintext is the only copy; the store keeps its digest.
func (s *Service) Login(ctx context.Context, email, password, tokenName string) (users.User, string, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return users.User{}, "", ErrInvalidCredentials
	}
	if !user.IsActive {
		return users.User{}, "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return users.User{}, "", ErrInvalidCredentials
	}

	plaintext := newTokenPlaintext()
	token := Token{
		UserID:    user.ID,
		TokenHash: HashToken(plaintext),
		Name:      tokenName,
	}
	if s.tokenTTL > 0 {
		expires := time.Now().UTC().Add(s.tokenTTL)
		token.ExpiresAt = &expires
	}
	if _, err := s.tokens.Insert(ctx, token); err != nil {
		return users.User{}, "", err
	}
	return user, plaintext, nil
}

// Authenticate resolves a bearer token to its actor. Expired or unknown
// tokens fail with ErrInvalidToken; a deactivated account invalidates all of
// its tokens.
func (s *Service) Authenticate(ctx context.Context, plaintext string) (shared.Actor, error) {
	plaintext = strings.TrimSpace(plaintext)
	if plaintext == "" {
		return shared.Actor{}, ErrInvalidToken
	}
	token, err := s.tokens.FindByHash(ctx, HashToken(plaintext))
	if err != nil {
		return shared.Actor{}, ErrInvalidToken
	}
	now := time.Now().UTC()
	if token.ExpiresAt != nil && token.ExpiresAt.Before(now) {
		return shared.Actor{}, ErrInvalidToken
	}
	user, err := s.users.Get(ctx, token.UserID)
	if err != nil || !user.IsActive {
		return shared.Actor{}, ErrInvalidToken
	}
	_ = s.tokens.TouchLastUsed(ctx, token.ID, now)
	return shared.Actor{ID: user.ID, Email: user.Email, Role: user.Role}, nil
}

// Logout revokes the presented token.
func (s *Service) Logout(ctx context.Context, plaintext string) error {
	return s.tokens.DeleteByHash(ctx, HashToken(plaintext))
}

// RevokeAll drops every token of one user, e.g. after deactivation.
func (s *Service) RevokeAll(ctx context.Context, userID int64) error {
	return s.tokens.DeleteForUser(ctx, userID)
}

// PurgeExpired removes expired tokens and reports how many were dropped.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	return s.tokens.DeleteExpired(ctx, time.Now().UTC())
}

// HashToken derives the stored digest for a plaintext token.
func HashToken(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

func newTokenPlaintext() string {
	return strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
}
