package auth

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists API tokens in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert stores the token digest.
func (r *Repository) Insert(ctx context.Context, token Token) (Token, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO api_tokens (user_id, token_hash, name, expires_at, created_at)
VALUES ($1,$2,$3,$4,NOW()) RETURNING id, created_at`,
		token.UserID, token.TokenHash, token.Name, token.ExpiresAt).
		Scan(&token.ID, &token.CreatedAt)
	if err != nil {
		return Token{}, err
	}
	return token, nil
}

// FindByHash fetches a token by digest.
func (r *Repository) FindByHash(ctx context.Context, hash string) (Token, error) {
	var t Token
	err := r.pool.QueryRow(ctx, `SELECT id, user_id, token_hash, name, last_used_at, expires_at, created_at
FROM api_tokens WHERE token_hash=$1`, hash).
		Scan(&t.ID, &t.UserID, &t.TokenHash, &t.Name, &t.LastUsedAt, &t.ExpiresAt, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Token{}, ErrInvalidToken
		}
		return Token{}, err
	}
	return t, nil
}

// TouchLastUsed records token usage.
func (r *Repository) TouchLastUsed(ctx context.Context, id int64, at time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE api_tokens SET last_used_at=$2 WHERE id=$1`, id, at)
	return err
}

// DeleteByHash revokes one token.
func (r *Repository) DeleteByHash(ctx context.Context, hash string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM api_tokens WHERE token_hash=$1`, hash)
	return err
}

// DeleteForUser revokes every token of one user.
func (r *Repository) DeleteForUser(ctx context.Context, userID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM api_tokens WHERE user_id=$1`, userID)
	return err
}

// DeleteExpired drops expired tokens.
func (r *Repository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM api_tokens WHERE expires_at IS NOT NULL AND expires_at < $1`, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
