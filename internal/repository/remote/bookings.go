package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"cabbook/internal/domain"
	"cabbook/internal/repository"
)

const (
	autocompletePath = "/api/v1/bookings/autocomplete/"
	tripsPath        = "/api/v1/bookings/trips/"
)

type suggestionResponse struct {
	Suggestions []struct {
		PlaceName string  `json:"place_name"`
		Longitude float64 `json:"longitude"`
		Latitude  float64 `json:"latitude"`
	} `json:"suggestions"`
}

// Autocomplete implements repository.PlacesAPI.
func (c *Client) Autocomplete(ctx context.Context, accessToken, query string) ([]domain.Suggestion, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", repository.ErrTransport, err)
	}

	path := autocompletePath + "?q=" + url.QueryEscape(query)

	var resp suggestionResponse
	if err := c.do(ctx, http.MethodGet, path, accessToken, nil, &resp); err != nil {
		return nil, err
	}

	suggestions := make([]domain.Suggestion, 0, len(resp.Suggestions))
	for _, s := range resp.Suggestions {
		if s.PlaceName == "" {
			continue
		}
		suggestions = append(suggestions, domain.Suggestion{
			PlaceName: s.PlaceName,
			Latitude:  s.Latitude,
			Longitude: s.Longitude,
		})
	}
	return suggestions, nil
}

type tripResponse struct {
	ID             json.RawMessage `json:"id"`
	Status         string          `json:"status"`
	EstimatedPrice float64         `json:"estimated_price"`
}

// CreateTrip implements repository.BookingAPI.
func (c *Client) CreateTrip(ctx context.Context, accessToken string, req repository.BookingRequest) (*domain.BookingAck, error) {
	var resp tripResponse
	if err := c.do(ctx, http.MethodPost, tripsPath, accessToken, req, &resp); err != nil {
		return nil, err
	}

	return &domain.BookingAck{
		ID:             rawID(resp.ID),
		Status:         resp.Status,
		EstimatedPrice: resp.EstimatedPrice,
	}, nil
}

// rawID renders a JSON id that may be a string or a number.
func rawID(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

var (
	_ repository.PlacesAPI  = (*Client)(nil)
	_ repository.BookingAPI = (*Client)(nil)
)
