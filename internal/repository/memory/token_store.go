// Package memory provides an in-process token store for development and tests.
package memory

import (
	"context"
	"sync"

	"cabbook/internal/repository"
)

// TokenStore keeps tokens in a map. Contents are lost on restart.
type TokenStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewTokenStore creates an empty TokenStore.
func NewTokenStore() *TokenStore {
	return &TokenStore{values: make(map[string]string)}
}

func (s *TokenStore) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	if !ok {
		return "", repository.ErrNotFound
	}
	return v, nil
}

func (s *TokenStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *TokenStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.values, k)
	}
	return nil
}

var _ repository.TokenStore = (*TokenStore)(nil)
