package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrConflict          = errors.New("already exists")
	ErrDailyLimitReached = errors.New("daily expense limit reached")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidDate       = errors.New("invalid date")
)

// FieldError describes one rejected field of a write payload.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is returned when a write payload breaks a field rule or a
// cross-field invariant. Nothing is written when it is returned.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add records a field failure.
func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// Err returns e when at least one field failed, nil otherwise.
func (e *ValidationError) Err() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// Has reports whether the given field failed.
func (e *ValidationError) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

// UpstreamError marks a failure of a collaborator (store, broker, LLM). Callers
// see a generic retry message; Op and the wrapped error are for logs only.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Upstream wraps err as an UpstreamError unless it is nil or already classified.
func Upstream(op string, err error) error {
	if err == nil {
		return nil
	}
	var ve *ValidationError
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrUnauthorized) || errors.As(err, &ve) {
		return err
	}
	return &UpstreamError{Op: op, Err: err}
}
