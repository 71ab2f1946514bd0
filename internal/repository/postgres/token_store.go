package postgres

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"cabbook/internal/repository"
)

// TokenStore implements repository.TokenStore on a single key-value table.
type TokenStore struct {
	db Querier
}

// NewTokenStore creates a new TokenStore.
func NewTokenStore(db Querier) *TokenStore {
	return &TokenStore{db: db}
}

// Get retrieves the value stored under key.
func (s *TokenStore) Get(ctx context.Context, key string) (string, error) {
	query := `SELECT value FROM token_store WHERE key = $1`
	row := s.db.QueryRowContext(ctx, query, key)

	var value string
	err := row.Scan(&value)
	if err == sql.ErrNoRows {
		return "", repository.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// Set upserts value under key.
func (s *TokenStore) Set(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO token_store (key, value, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`
	_, err := s.db.ExecContext(ctx, query, key, value)
	return err
}

// Delete removes keys.
func (s *TokenStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	query := `DELETE FROM token_store WHERE key = ANY($1)`
	_, err := s.db.ExecContext(ctx, query, pq.Array(keys))
	return err
}

var _ repository.TokenStore = (*TokenStore)(nil)
