package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"cabbook/internal/domain"
	"cabbook/internal/repository"
	"cabbook/internal/service"
)

// ErrorResponse represents an error response. Fields carries one message
// per offending input field.
type ErrorResponse struct {
	Error  string              `json:"error"`
	Fields []domain.FieldError `json:"fields,omitempty"`
}

// respondError sends an error response with the appropriate HTTP status code.
func respondError(c *gin.Context, err error) {
	code := mapErrorToHTTPStatus(err)
	resp := ErrorResponse{Error: err.Error()}
	if ve, ok := domain.AsValidationErrors(err); ok {
		resp.Error = "validation failed"
		resp.Fields = ve
	}
	if code >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.JSON(code, resp)
}

// respondBadRequest reports a malformed request body.
func respondBadRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error()})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// mapErrorToHTTPStatus maps service/repository errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	if _, ok := domain.AsValidationErrors(err); ok {
		return http.StatusBadRequest
	}

	switch {
	// Not found errors
	case errors.Is(err, repository.ErrNotFound),
		errors.Is(err, service.ErrDraftNotFound),
		errors.Is(err, service.ErrNoNegotiation):
		return http.StatusNotFound

	// Validation errors - Bad Request
	case errors.Is(err, service.ErrInvalidOtp),
		errors.Is(err, service.ErrInvalidTripType),
		errors.Is(err, service.ErrInvalidPrice),
		errors.Is(err, domain.ErrInvalidStopIndex),
		errors.Is(err, domain.ErrInvalidField),
		errors.Is(err, domain.ErrInvalidPassengerCount):
		return http.StatusBadRequest

	// Authentication
	case errors.Is(err, service.ErrNoSession):
		return http.StatusUnauthorized

	case errors.Is(err, service.ErrOnboardingRequired):
		return http.StatusForbidden

	case errors.Is(err, service.ErrResendCooldown):
		return http.StatusTooManyRequests

	// Conflict errors
	case errors.Is(err, service.ErrResendPending),
		errors.Is(err, service.ErrVerifyPending),
		errors.Is(err, service.ErrNoChallenge),
		errors.Is(err, service.ErrChallengeSuperseded),
		errors.Is(err, service.ErrDraftSubmitted),
		errors.Is(err, service.ErrSubmitInProgress),
		errors.Is(err, service.ErrComposerClosed):
		return http.StatusConflict

	// Remote API unreachable or breaker open
	case errors.Is(err, repository.ErrTransport):
		return http.StatusServiceUnavailable
	}

	if se, ok := repository.AsServerError(err); ok {
		if se.Unauthorized() {
			return http.StatusUnauthorized
		}
		return http.StatusBadGateway
	}

	return http.StatusInternalServerError
}
