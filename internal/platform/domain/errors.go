// Package domain holds the error taxonomy shared by every layer of the
// pet-manager services. Each error carries a stable code so transports can map
// it without string matching.
package domain

import (
	"errors"
	"fmt"
)

// Error codes.
const (
	CodeValidation   = "VALIDATION_ERROR"
	CodeNotFound     = "NOT_FOUND"
	CodeConflict     = "CONFLICT"
	CodeForbidden    = "FORBIDDEN"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeRateLimited  = "RATE_LIMITED"
)

// AppError is a domain-level failure with a machine readable code.
type AppError struct {
	Code    string
	Message string
	Fields  map[string]string
}

func (e *AppError) Error() string {
	return e.Message
}

// Is matches any *AppError with the same code, so errors.Is(err, ErrNotFound)
// works for every not-found error regardless of message.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code && t.Message == ""
}

// Sentinels for errors.Is checks.
var (
	ErrValidation   = &AppError{Code: CodeValidation}
	ErrNotFound     = &AppError{Code: CodeNotFound}
	ErrConflict     = &AppError{Code: CodeConflict}
	ErrForbidden    = &AppError{Code: CodeForbidden}
	ErrUnauthorized = &AppError{Code: CodeUnauthorized}
	ErrRateLimited  = &AppError{Code: CodeRateLimited}
)

// NewValidationError reports malformed input. fields maps a field name to the
// rule it violated and may be nil.
func NewValidationError(message string, fields ...map[string]string) *AppError {
	e := &AppError{Code: CodeValidation, Message: message}
	if len(fields) > 0 {
		e.Fields = fields[0]
	}
	return e
}

// NewNotFoundError reports a missing entity.
func NewNotFoundError(entity, id string) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s %s not found", entity, id),
	}
}

// NewConflictError reports a uniqueness or concurrency conflict.
func NewConflictError(message string) *AppError {
	return &AppError{Code: CodeConflict, Message: message}
}

// NewForbiddenError reports an ownership or permission violation.
func NewForbiddenError(message string) *AppError {
	return &AppError{Code: CodeForbidden, Message: message}
}

// NewUnauthorizedError reports missing or invalid credentials.
func NewUnauthorizedError(message string) *AppError {
	return &AppError{Code: CodeUnauthorized, Message: message}
}

// NewRateLimitError reports that the caller must back off.
func NewRateLimitError(message string) *AppError {
	return &AppError{Code: CodeRateLimited, Message: message}
}

// CodeOf returns the code of the first AppError in err's chain, or "".
func CodeOf(err error) string {
	var e *AppError
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
