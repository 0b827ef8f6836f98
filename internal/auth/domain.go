package auth

import (
	"errors"
	"time"
)

// Token is an issued API token. Only the SHA-256 digest of the plaintext is
// stored; the plaintext is shown once at login.
type Token struct {
	ID         int64
	UserID     int64
	TokenHash  string
	Name       string
	LastUsedAt *time.Time
	ExpiresAt  *time.Time
	CreatedAt  time.Time
}

// ErrInvalidCredentials hides whether the email exists, the password failed
// or the account is inactive.
var ErrInvalidCredentials = errors.New("auth: invalid credentials")

// ErrInvalidToken rejects unknown, revoked or expired tokens.
var ErrInvalidToken = errors.New("auth: invalid token")
