package redis

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"cabbook/internal/repository"
)

const tokenKeyPrefix = "token:"

// TokenStore persists session tokens in Redis. Tokens have no TTL; they
// live until logout or until the server rejects them.
type TokenStore struct {
	client *redis.Client
}

// NewTokenStore creates a new TokenStore.
func NewTokenStore(client *redis.Client) *TokenStore {
	return &TokenStore{client: client}
}

// Get returns the value stored under key.
func (s *TokenStore) Get(ctx context.Context, key string) (string, error) {
	v, err := s.client.Get(ctx, tokenKeyPrefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", repository.ErrNotFound
		}
		return "", err
	}
	return v, nil
}

// Set stores value under key.
func (s *TokenStore) Set(ctx context.Context, key, value string) error {
	return s.client.Set(ctx, tokenKeyPrefix+key, value, 0).Err()
}

// Delete removes keys. Missing keys are ignored.
func (s *TokenStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = tokenKeyPrefix + k
	}
	return s.client.Del(ctx, prefixed...).Err()
}
