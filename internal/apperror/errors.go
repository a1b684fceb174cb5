// Package apperror provides domain-specific error types for the portal.
// These errors carry an HTTP status code and a user-safe message. The Echo
// error handler maps them to appropriate HTTP responses automatically.
//
// NEVER return raw database or infrastructure errors to the client. Always
// wrap them in an apperror type or return a generic internal error.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Machine-readable error types. Clients branch on these, so they are part
// of the API contract.
const (
	TypeNotFound             = "not_found"
	TypeBadRequest           = "bad_request"
	TypeUnauthorized         = "unauthorized"
	TypeForbidden            = "forbidden"
	TypeConflict             = "conflict"
	TypeValidation           = "validation_error"
	TypeInvalidCredentials   = "invalid_credentials"
	TypeAccountDisabled      = "account_disabled"
	TypeAccountUnverified    = "account_unverified"
	TypeDuplicateAccount     = "duplicate_account"
	TypeOTPNotFound          = "otp_not_found"
	TypeOTPExpired           = "otp_expired"
	TypeOTPAttemptsExhausted = "otp_attempts_exhausted"
	TypeOTPMismatch          = "otp_mismatch"
	TypeInternal             = "internal_error"
)

// AppError is the base error type for all domain errors. It carries an
// HTTP status code, a machine-readable error type, and a human-readable
// message safe to show to the client.
type AppError struct {
	// Code is the HTTP status code (e.g., 404, 400, 500).
	Code int `json:"-"`

	// Type is a machine-readable error classifier (e.g., "not_found").
	Type string `json:"type"`

	// Message is a human-readable description safe for the client.
	Message string `json:"message"`

	// Field names the offending input field for validation errors.
	Field string `json:"field,omitempty"`

	// Internal holds the underlying error for logging. Never exposed to client.
	Internal error `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %s (internal: %v)", e.Type, e.Message, e.Internal)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *AppError) Unwrap() error {
	return e.Internal
}

// --- Constructors for common error types ---

// NewNotFound creates a 404 Not Found error.
func NewNotFound(message string) *AppError {
	return &AppError{
		Code:    http.StatusNotFound,
		Type:    TypeNotFound,
		Message: message,
	}
}

// NewBadRequest creates a 400 Bad Request error.
func NewBadRequest(message string) *AppError {
	return &AppError{
		Code:    http.StatusBadRequest,
		Type:    TypeBadRequest,
		Message: message,
	}
}

// NewUnauthorized creates a 401 Unauthorized error.
func NewUnauthorized(message string) *AppError {
	return &AppError{
		Code:    http.StatusUnauthorized,
		Type:    TypeUnauthorized,
		Message: message,
	}
}

// NewForbidden creates a 403 Forbidden error.
func NewForbidden(message string) *AppError {
	return &AppError{
		Code:    http.StatusForbidden,
		Type:    TypeForbidden,
		Message: message,
	}
}

// NewConflict creates a 409 Conflict error.
func NewConflict(message string) *AppError {
	return &AppError{
		Code:    http.StatusConflict,
		Type:    TypeConflict,
		Message: message,
	}
}

// NewValidation creates a 422 Unprocessable Entity error for validation failures.
func NewValidation(message string) *AppError {
	return &AppError{
		Code:    http.StatusUnprocessableEntity,
		Type:    TypeValidation,
		Message: message,
	}
}

// NewFieldValidation creates a validation error tied to a single input field.
func NewFieldValidation(field, message string) *AppError {
	e := NewValidation(message)
	e.Field = field
	return e
}

// errMissingContext is the shared internal error for nil precondition checks.
var errMissingContext = errors.New("missing required context")

// NewMissingContext creates a 500 error for handler nil-context guards
// (e.g. session not set, dependency not wired).
func NewMissingContext() *AppError {
	return NewInternal(errMissingContext)
}

// NewInternal creates a 500 Internal Server Error. The real error is stored
// in Internal for logging but the client only sees a generic message.
func NewInternal(err error) *AppError {
	return &AppError{
		Code:     http.StatusInternalServerError,
		Type:     TypeInternal,
		Message:  "An unexpected error occurred. Please try again.",
		Internal: err,
	}
}

// --- Authentication errors ---

// NewInvalidCredentials is returned for both unknown accounts and wrong
// passwords. The two cases must stay indistinguishable.
func NewInvalidCredentials() *AppError {
	return &AppError{
		Code:    http.StatusUnauthorized,
		Type:    TypeInvalidCredentials,
		Message: "Invalid credentials",
	}
}

// NewAccountDisabled creates a 403 for accounts switched off by an admin.
func NewAccountDisabled() *AppError {
	return &AppError{
		Code:    http.StatusForbidden,
		Type:    TypeAccountDisabled,
		Message: "Account is disabled",
	}
}

// NewAccountUnverified creates a 403 for accounts that never completed
// email verification.
func NewAccountUnverified() *AppError {
	return &AppError{
		Code:    http.StatusForbidden,
		Type:    TypeAccountUnverified,
		Message: "Account not verified. Please complete email verification first.",
	}
}

// NewDuplicateAccount creates a 409 for registrations that collide with an
// existing email or phone.
func NewDuplicateAccount() *AppError {
	return &AppError{
		Code:    http.StatusConflict,
		Type:    TypeDuplicateAccount,
		Message: "Account already exists with this email or phone",
	}
}

// --- One-time passcode errors ---

// NewOTPNotFound is returned when no active challenge exists for the key,
// including challenges that were already consumed.
func NewOTPNotFound() *AppError {
	return &AppError{
		Code:    http.StatusUnauthorized,
		Type:    TypeOTPNotFound,
		Message: "No active verification request found",
	}
}

// NewOTPExpired is returned when the challenge's expiry has passed.
func NewOTPExpired() *AppError {
	return &AppError{
		Code:    http.StatusUnauthorized,
		Type:    TypeOTPExpired,
		Message: "Code expired, please request a new one",
	}
}

// NewOTPAttemptsExhausted is returned once every attempt has been used.
func NewOTPAttemptsExhausted() *AppError {
	return &AppError{
		Code:    http.StatusUnauthorized,
		Type:    TypeOTPAttemptsExhausted,
		Message: "Too many attempts, request a new code",
	}
}

// NewOTPMismatch is returned for a wrong code while attempts remain.
func NewOTPMismatch() *AppError {
	return &AppError{
		Code:    http.StatusUnauthorized,
		Type:    TypeOTPMismatch,
		Message: "Invalid verification code",
	}
}

// --- Inspection helpers ---

// HasType reports whether err is (or wraps) an AppError of the given type.
func HasType(err error, typ string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == typ
	}
	return false
}

// SafeMessage returns the client-safe error message from an error. If the
// error is an AppError, returns its Message field (which is safe to expose).
// For any other error type, returns a generic message to prevent leaking
// internal details like table names, query structure, or stack traces.
func SafeMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "an unexpected error occurred"
}

// SafeCode returns the HTTP status code from an AppError, or 500 for
// any other error type.
func SafeCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return http.StatusInternalServerError
}
