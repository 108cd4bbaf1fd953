package errorutil

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/token-auth/internal/domain"
)

// Message returned for every authentication failure. The cause is kept on
// the error for logging only.
const authFailedMessage = "authentication failed"

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError("VALIDATION_FAILED", message, http.StatusBadRequest, details)
}

// NewUnauthorized returns the opaque authentication failure wrapping cause.
func NewUnauthorized(cause error) *DomainError {
	return &DomainError{
		Code:       "UNAUTHORIZED",
		Message:    authFailedMessage,
		HTTPStatus: http.StatusUnauthorized,
		Err:        cause,
	}
}

func NewForbidden(cause error) *DomainError {
	return &DomainError{
		Code:       "FORBIDDEN",
		Message:    "insufficient role",
		HTTPStatus: http.StatusForbidden,
		Err:        cause,
	}
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError("CONFLICT", message, http.StatusConflict, details)
}

func NewInternalError(err error) *DomainError {
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts errors to a DomainError. Authentication kinds all
// collapse to the same 401.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}

	switch {
	case domain.IsAuthenticationError(err):
		return NewUnauthorized(err)
	case errors.Is(err, domain.ErrInsufficientRole):
		return NewForbidden(err)
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		return &DomainError{
			Code:       "UPSTREAM_UNAVAILABLE",
			Message:    "service temporarily unavailable",
			HTTPStatus: http.StatusServiceUnavailable,
			Err:        err,
		}
	case errors.Is(err, domain.ErrRateLimited):
		return &DomainError{
			Code:       "RATE_LIMITED",
			Message:    "too many attempts",
			HTTPStatus: http.StatusTooManyRequests,
			Err:        err,
		}
	case errors.Is(err, domain.ErrConflict):
		return &DomainError{
			Code:       "CONFLICT",
			Message:    "resource already exists",
			HTTPStatus: http.StatusConflict,
			Err:        err,
		}
	case errors.Is(err, domain.ErrNotFound):
		return &DomainError{
			Code:       "NOT_FOUND",
			Message:    "resource not found",
			HTTPStatus: http.StatusNotFound,
			Err:        err,
		}
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return &DomainError{
			Code:       codeForStatus(fiberErr.Code),
			Message:    fiberErr.Message,
			HTTPStatus: fiberErr.Code,
		}
	}
	return NewInternalError(err)
}

func MapError(err error) error {
	return ToDomainError(err)
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "VALIDATION_FAILED"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	case http.StatusRequestEntityTooLarge:
		return "PAYLOAD_TOO_LARGE"
	default:
		if status >= http.StatusInternalServerError {
			return "INTERNAL_ERROR"
		}
		return "REQUEST_FAILED"
	}
}
