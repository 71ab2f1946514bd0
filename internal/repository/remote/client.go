// Package remote implements the repository interfaces against the booking
// platform's HTTP API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"cabbook/internal/config"
	"cabbook/internal/repository"
)

const maxResponseBytes = 1 << 20

// errAbandoned marks a call whose caller cancelled or timed out its context.
// It is not counted against the breaker.
var errAbandoned = errors.New("request abandoned by caller")

func abandoned(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %w", errAbandoned, ctxErr)
	}
	return err
}

// Client talks to the remote API. All calls go through one circuit breaker;
// autocomplete calls are additionally rate limited.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewClient creates a Client from API configuration.
func NewClient(cfg config.APIConfig, logger *zap.Logger) *Client {
	return NewClientWithHTTP(cfg, &http.Client{
		Timeout:   cfg.Timeout,
		Transport: newrelic.NewRoundTripper(http.DefaultTransport),
	}, logger)
}

// NewClientWithHTTP creates a Client using the given http.Client.
func NewClientWithHTTP(cfg config.APIConfig, httpClient *http.Client, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	limit := rate.Inf
	if cfg.AutocompletePerSecond > 0 {
		limit = rate.Limit(cfg.AutocompletePerSecond)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "remote-api",
		Timeout: cfg.BreakerCooldown,
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errAbandoned)
		},
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return cfg.BreakerFailures > 0 && counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    httpClient,
		breaker: breaker,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}
}

// rawResponse is a completed exchange with a non-5xx status.
type rawResponse struct {
	status int
	body   []byte
}

// do sends a JSON request and decodes a 2xx JSON response into out.
// Transport failures and an open breaker become repository.ErrTransport;
// non-2xx answers become *repository.ServerError.
func (c *Client) do(ctx context.Context, method, path, accessToken string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}

	start := time.Now()
	result, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if accessToken != "" {
			req.Header.Set("Authorization", "Bearer "+accessToken)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, abandoned(ctx, err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return nil, abandoned(ctx, err)
		}

		// 5xx counts against the breaker; 4xx is a valid answer.
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, parseServerError(resp.StatusCode, data)
		}
		return &rawResponse{status: resp.StatusCode, body: data}, nil
	})

	if err != nil {
		c.logger.Warn("remote api call failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Duration("latency", time.Since(start)),
			zap.Error(err),
		)
		if _, ok := repository.AsServerError(err); ok {
			return err
		}
		return fmt.Errorf("%w: %w", repository.ErrTransport, err)
	}

	raw := result.(*rawResponse)
	c.logger.Debug("remote api call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", raw.status),
		zap.Duration("latency", time.Since(start)),
	)

	if raw.status < 200 || raw.status >= 300 {
		return parseServerError(raw.status, raw.body)
	}

	if out == nil || len(bytes.TrimSpace(raw.body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw.body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// parseServerError reads a DRF-style error body: {"detail": "..."} and/or
// {"field": "msg"} / {"field": ["msg", ...]}.
func parseServerError(status int, body []byte) error {
	se := &repository.ServerError{Status: status}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		se.Detail = http.StatusText(status)
		return se
	}

	for key, raw := range payload {
		msg := firstMessage(raw)
		if msg == "" {
			continue
		}
		if key == "detail" || key == "non_field_errors" {
			if se.Detail == "" {
				se.Detail = msg
			}
			continue
		}
		if se.Fields == nil {
			se.Fields = make(map[string]string)
		}
		se.Fields[key] = msg
	}

	if se.Detail == "" && len(se.Fields) == 0 {
		se.Detail = http.StatusText(status)
	}
	return se
}

func firstMessage(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		return list[0]
	}
	return ""
}
