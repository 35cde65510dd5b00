package util

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Error codes surfaced to API callers.
const (
	CodeDuplicateEmail     = "DUPLICATE_EMAIL"
	CodeDuplicateUsername  = "DUPLICATE_USERNAME"
	CodeForbidden          = "FORBIDDEN"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeAccessDenied       = "ACCESS_DENIED"
	CodeValidationFailed   = "VALIDATION_FAILED"
	CodeNotFound           = "NOT_FOUND"
	CodeInternal           = "INTERNAL_ERROR"
)

// Sentinels for errors.Is comparisons. Matching is by Code only.
var (
	ErrDuplicateEmail     = NewDomainError(CodeDuplicateEmail, "email already registered", http.StatusConflict, nil)
	ErrDuplicateUsername  = NewDomainError(CodeDuplicateUsername, "username already taken", http.StatusConflict, nil)
	ErrForbidden          = NewDomainError(CodeForbidden, "forbidden", http.StatusForbidden, nil)
	ErrInvalidCredentials = NewDomainError(CodeInvalidCredentials, "invalid credentials", http.StatusUnauthorized, nil)
	ErrUnauthorized       = NewDomainError(CodeUnauthorized, "unauthorized", http.StatusUnauthorized, nil)
	ErrAccessDenied       = NewDomainError(CodeAccessDenied, "access denied", http.StatusForbidden, nil)
	ErrNotFound           = NewDomainError(CodeNotFound, "not found", http.StatusNotFound, nil)
	ErrInternal           = NewDomainError(CodeInternal, "internal server error", http.StatusInternalServerError, nil)
)

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

// Is reports whether target is a DomainError of the same kind.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidationFailed, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

func NewDuplicateEmail() error {
	return NewDomainError(CodeDuplicateEmail, ErrDuplicateEmail.Message, http.StatusConflict, nil)
}

func NewDuplicateUsername() error {
	return NewDomainError(CodeDuplicateUsername, ErrDuplicateUsername.Message, http.StatusConflict, nil)
}

// NewInvalidCredentials is returned for every failed login regardless of cause.
func NewInvalidCredentials() error {
	return NewDomainError(CodeInvalidCredentials, ErrInvalidCredentials.Message, http.StatusUnauthorized, nil)
}

// NewAccessDenied is returned for every failed refresh regardless of cause.
func NewAccessDenied() error {
	return NewDomainError(CodeAccessDenied, ErrAccessDenied.Message, http.StatusForbidden, nil)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// IsDomainError reports whether err already carries a caller-facing kind.
func IsDomainError(err error) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr)
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) && fiberErr.Code < http.StatusInternalServerError {
		return &DomainError{
			Code:       codeForStatus(fiberErr.Code),
			Message:    fiberErr.Message,
			HTTPStatus: fiberErr.Code,
			Err:        err,
		}
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// codeForStatus names framework errors such as unmatched routes or
// oversized bodies.
func codeForStatus(status int) string {
	switch status {
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		return CodeNotFound
	case http.StatusUnauthorized:
		return CodeUnauthorized
	case http.StatusForbidden:
		return CodeForbidden
	default:
		return CodeValidationFailed
	}
}

// MapError returns err unchanged when it is a DomainError and collapses
// anything else to an internal error.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	return ToDomainError(err)
}
