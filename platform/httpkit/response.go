// Package httpkit provides HTTP response utilities.
// This is part of the platform layer and contains no business logic.
package httpkit

import (
	"errors"
	"net/http"

	"buyer_crm_backend/platform/apperr"

	"github.com/gin-gonic/gin"
)

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error   string      `json:"error"`
	Kind    string      `json:"kind,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

// appErrorer is implemented by structured errors that know their apperr form.
type appErrorer interface {
	AppError() *apperr.Error
}

// JSON sends a JSON response with the given status code.
func JSON(c *gin.Context, status int, payload interface{}) {
	c.JSON(status, payload)
}

// Error sends an error response with the given status code and message.
func Error(c *gin.Context, status int, message string, details interface{}) {
	c.JSON(status, ErrorResponse{Error: message, Details: details})
}

// OK sends a 200 OK response with the given payload.
func OK(c *gin.Context, payload interface{}) {
	c.JSON(http.StatusOK, payload)
}

// HandleError maps domain errors to HTTP responses.
// A typed *apperr.Error anywhere in the chain selects the status by Kind.
// Untyped errors are reported as 500 without leaking their text.
// Returns true if an error was handled, false otherwise.
func HandleError(c *gin.Context, err error) bool {
	if err == nil {
		return false
	}

	domainErr := AsAppError(err)
	if domainErr == nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error", Kind: apperr.KindInternal.String()})
		return true
	}

	if domainErr.HTTPStatus() >= http.StatusInternalServerError {
		_ = c.Error(err)
		c.JSON(domainErr.HTTPStatus(), ErrorResponse{Error: domainErr.Message, Kind: domainErr.Kind.String()})
		return true
	}

	c.JSON(domainErr.HTTPStatus(), ErrorResponse{
		Error:   domainErr.Message,
		Kind:    domainErr.Kind.String(),
		Details: domainErr.Details,
	})
	return true
}

// AsAppError finds the *apperr.Error carried by err, or nil.
func AsAppError(err error) *apperr.Error {
	var domainErr *apperr.Error
	if errors.As(err, &domainErr) {
		return domainErr
	}
	var structured appErrorer
	if errors.As(err, &structured) {
		return structured.AppError()
	}
	return nil
}
