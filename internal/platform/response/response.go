// Package response writes the JSON envelope shared by every endpoint.
package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Kilat-Pet-Delivery/service-pet-manager/internal/platform/domain"
)

// Envelope is the JSON body of every response.
type Envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
}

// ErrorBody describes a failure.
type ErrorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// Success writes 200 with data.
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Envelope{Success: true, Data: data})
}

// Created writes 201 with data.
func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, Envelope{Success: true, Data: data})
}

// BadRequest writes 400 with a validation error body.
func BadRequest(c *gin.Context, message string) {
	abort(c, http.StatusBadRequest, ErrorBody{Code: domain.CodeValidation, Message: message})
}

// Unauthorized writes 401.
func Unauthorized(c *gin.Context, message string) {
	abort(c, http.StatusUnauthorized, ErrorBody{Code: domain.CodeUnauthorized, Message: message})
}

// Error maps err onto a status code by its domain code. Unknown errors become
// 500 without leaking the message.
func Error(c *gin.Context, err error) {
	status, body := StatusOf(err)
	abort(c, status, body)
}

// StatusOf returns the HTTP status and body for err.
func StatusOf(err error) (int, ErrorBody) {
	body := ErrorBody{Code: domain.CodeOf(err), Message: err.Error()}
	var app *domain.AppError
	if errors.As(err, &app) {
		body.Fields = app.Fields
	}

	switch body.Code {
	case domain.CodeValidation:
		return http.StatusBadRequest, body
	case domain.CodeUnauthorized:
		return http.StatusUnauthorized, body
	case domain.CodeForbidden:
		return http.StatusForbidden, body
	case domain.CodeNotFound:
		return http.StatusNotFound, body
	case domain.CodeConflict:
		return http.StatusConflict, body
	case domain.CodeRateLimited:
		return http.StatusTooManyRequests, body
	default:
		return http.StatusInternalServerError, ErrorBody{Code: "INTERNAL_ERROR", Message: "internal server error"}
	}
}

func abort(c *gin.Context, status int, body ErrorBody) {
	c.AbortWithStatusJSON(status, Envelope{Success: false, Error: &body})
}
