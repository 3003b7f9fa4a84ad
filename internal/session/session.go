// Package session tracks the authenticated principal of the client and
// mediates every call to the external auth provider.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Principal is the authenticated user.
type Principal struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
}

// Session is the observable auth state. Loading is true until the initial
// session check completes.
type Session struct {
	Principal *Principal
	Loading   bool
}

// Authenticated reports whether a principal is present.
func (s Session) Authenticated() bool { return s.Principal != nil }

// Provider is the external auth provider boundary.
type Provider interface {
	SignUp(ctx context.Context, email, password string) (*Principal, error)
	SignIn(ctx context.Context, email, password string) (*Principal, error)
	SignOut(ctx context.Context) error
	// CurrentSession returns the persisted principal, or nil when there is none.
	CurrentSession(ctx context.Context) (*Principal, error)
	// OnSessionChange registers fn for sign-in, sign-out and token refresh
	// events. fn receives nil on sign-out.
	OnSessionChange(fn func(*Principal)) (unsubscribe func())
}

// ErrorCode classifies an AuthError.
type ErrorCode string

const (
	CodeInvalidCredentials ErrorCode = "invalid_credentials"
	CodeAccountNotFound    ErrorCode = "account_not_found"
	CodeAlreadyRegistered  ErrorCode = "already_registered"
	CodeMalformed          ErrorCode = "malformed"
	CodeRateLimited        ErrorCode = "rate_limited"
	CodeUnavailable        ErrorCode = "unavailable"
)

// AuthError is the structured failure returned by a Provider.
type AuthError struct {
	Code    ErrorCode
	Message string
	Err     error
}

// NewAuthError builds an AuthError wrapping cause (which may be nil).
func NewAuthError(code ErrorCode, message string, cause error) *AuthError {
	return &AuthError{Code: code, Message: message, Err: cause}
}

func (e *AuthError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("auth: %s", e.Code)
	}
	return fmt.Sprintf("auth: %s: %s", e.Code, e.Message)
}

func (e *AuthError) Unwrap() error { return e.Err }

// CodeOf returns the AuthError code in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}
