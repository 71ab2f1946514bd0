package domain

import (
	"errors"
	"strings"
)

// FieldError is a validation failure scoped to one input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors collects field-scoped failures. Each field is reported
// independently so the user can fix them one at a time.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	parts := make([]string, 0, len(v))
	for _, fe := range v {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Has reports whether field has an error.
func (v ValidationErrors) Has(field string) bool {
	for _, fe := range v {
		if fe.Field == field {
			return true
		}
	}
	return false
}

// Add appends a field error, keeping only the first message per field.
func (v *ValidationErrors) Add(field, message string) {
	if v.Has(field) {
		return
	}
	*v = append(*v, FieldError{Field: field, Message: message})
}

// OrNil returns nil when there are no errors so callers can `return errs.OrNil()`.
func (v ValidationErrors) OrNil() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

// AsValidationErrors extracts ValidationErrors from err.
func AsValidationErrors(err error) (ValidationErrors, bool) {
	var v ValidationErrors
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}

var (
	// ErrInvalidStopIndex is returned when a stop index is out of range.
	ErrInvalidStopIndex = errors.New("invalid stop index")

	// ErrInvalidField is returned when an action names an unknown field.
	ErrInvalidField = errors.New("invalid field")

	// ErrInvalidPassengerCount is returned for a passenger count below one.
	ErrInvalidPassengerCount = errors.New("invalid passenger count")
)
