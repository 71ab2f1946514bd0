package redis

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"cabbook/internal/domain"
)

// SuggestionCacheTTL is the default lifetime of cached autocomplete results.
const SuggestionCacheTTL = 5 * time.Minute

const suggestionCachePrefix = "cache:places:"

// cachedSuggestion is the JSON form of a suggestion in Redis.
type cachedSuggestion struct {
	PlaceName string  `json:"place_name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// SuggestionCache caches place autocomplete results by normalized query.
type SuggestionCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSuggestionCache creates a new SuggestionCache. A zero ttl uses SuggestionCacheTTL.
func NewSuggestionCache(client *redis.Client, ttl time.Duration) *SuggestionCache {
	if ttl <= 0 {
		ttl = SuggestionCacheTTL
	}
	return &SuggestionCache{client: client, ttl: ttl}
}

func suggestionKey(query string) string {
	return suggestionCachePrefix + strings.ToLower(strings.TrimSpace(query))
}

// GetSuggestions returns cached results for query. The bool is false on a miss.
func (s *SuggestionCache) GetSuggestions(ctx context.Context, query string) ([]domain.Suggestion, bool, error) {
	data, err := s.client.Get(ctx, suggestionKey(query)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil // Cache miss
		}
		return nil, false, err
	}

	var cached []cachedSuggestion
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, false, err
	}

	items := make([]domain.Suggestion, len(cached))
	for i, c := range cached {
		items[i] = domain.Suggestion{PlaceName: c.PlaceName, Latitude: c.Latitude, Longitude: c.Longitude}
	}
	return items, true, nil
}

// SetSuggestions stores results for query.
func (s *SuggestionCache) SetSuggestions(ctx context.Context, query string, items []domain.Suggestion) error {
	cached := make([]cachedSuggestion, len(items))
	for i, it := range items {
		cached[i] = cachedSuggestion{PlaceName: it.PlaceName, Latitude: it.Latitude, Longitude: it.Longitude}
	}

	data, err := json.Marshal(cached)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, suggestionKey(query), data, s.ttl).Err()
}

// InvalidateSuggestions removes the cached results for query.
func (s *SuggestionCache) InvalidateSuggestions(ctx context.Context, query string) error {
	return s.client.Del(ctx, suggestionKey(query)).Err()
}
