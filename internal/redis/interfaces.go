package redis

import (
	"context"

	"cabbook/internal/domain"
	"cabbook/internal/repository"
)

// SuggestionStoreInterface defines the interface for autocomplete caching.
type SuggestionStoreInterface interface {
	GetSuggestions(ctx context.Context, query string) ([]domain.Suggestion, bool, error)
	SetSuggestions(ctx context.Context, query string, items []domain.Suggestion) error
}

// Ensure concrete types implement interfaces.
var (
	_ repository.TokenStore    = (*TokenStore)(nil)
	_ SuggestionStoreInterface = (*SuggestionCache)(nil)
)
