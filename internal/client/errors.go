// Package client adapts the pet-manager HTTP API to the session.Provider and
// pet.Repository ports used by petctl.
package client

import (
	"errors"
	"net/http"

	"github.com/Kilat-Pet-Delivery/service-pet-manager/internal/platform/domain"
	"github.com/Kilat-Pet-Delivery/service-pet-manager/internal/platform/httpclient"
	"github.com/Kilat-Pet-Delivery/service-pet-manager/internal/session"
)

// envelope mirrors the server's response body.
type envelope[T any] struct {
	Success bool `json:"success"`
	Data    T    `json:"data"`
}

// authError classifies a failed auth call.
func authError(err error) *session.AuthError {
	var he *httpclient.HTTPError
	if !errors.As(err, &he) {
		return session.NewAuthError(session.CodeUnavailable, "auth provider unreachable", err)
	}
	msg := he.Message
	switch he.StatusCode {
	case http.StatusBadRequest:
		return session.NewAuthError(session.CodeMalformed, msg, err)
	case http.StatusUnauthorized:
		return session.NewAuthError(session.CodeInvalidCredentials, msg, err)
	case http.StatusNotFound:
		return session.NewAuthError(session.CodeAccountNotFound, msg, err)
	case http.StatusConflict:
		return session.NewAuthError(session.CodeAlreadyRegistered, msg, err)
	case http.StatusTooManyRequests:
		return session.NewAuthError(session.CodeRateLimited, msg, err)
	default:
		return session.NewAuthError(session.CodeUnavailable, msg, err)
	}
}

// domainError maps an API failure back onto the domain taxonomy.
func domainError(err error) error {
	var he *httpclient.HTTPError
	if !errors.As(err, &he) {
		return err
	}
	switch he.StatusCode {
	case http.StatusBadRequest:
		return domain.NewValidationError(he.Message)
	case http.StatusUnauthorized:
		return domain.NewUnauthorizedError(he.Message)
	case http.StatusForbidden:
		return domain.NewForbiddenError(he.Message)
	case http.StatusNotFound:
		return &domain.AppError{Code: domain.CodeNotFound, Message: he.Message}
	case http.StatusConflict:
		return domain.NewConflictError(he.Message)
	case http.StatusTooManyRequests:
		return domain.NewRateLimitError(he.Message)
	default:
		return err
	}
}
