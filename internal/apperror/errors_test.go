package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHasType_Wrapped(t *testing.T) {
	err := fmt.Errorf("verifying: %w", NewOTPExpired())
	if !HasType(err, TypeOTPExpired) {
		t.Error("expected wrapped otp_expired to match")
	}
	if HasType(err, TypeOTPMismatch) {
		t.Error("expected otp_mismatch not to match")
	}
	if HasType(errors.New("plain"), TypeInternal) {
		t.Error("expected plain error not to match")
	}
}

func TestSafeMessage_HidesInternalDetails(t *testing.T) {
	err := NewInternal(errors.New("dial tcp 10.0.0.5:3306: connection refused"))
	if got := SafeMessage(err); got != "An unexpected error occurred. Please try again." {
		t.Errorf("unexpected message %q", got)
	}
	if got := SafeMessage(errors.New("SELECT * FROM users")); got != "an unexpected error occurred" {
		t.Errorf("unexpected message %q", got)
	}
	if !errors.Is(err, err.Internal) {
		t.Error("expected Unwrap to expose the internal error")
	}
}

func TestSafeCode(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{NewInvalidCredentials(), http.StatusUnauthorized},
		{NewAccountDisabled(), http.StatusForbidden},
		{NewAccountUnverified(), http.StatusForbidden},
		{NewDuplicateAccount(), http.StatusConflict},
		{NewOTPAttemptsExhausted(), http.StatusUnauthorized},
		{NewFieldValidation("email", "bad"), http.StatusUnprocessableEntity},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := SafeCode(tt.err); got != tt.code {
			t.Errorf("%v: expected %d, got %d", tt.err, tt.code, got)
		}
	}
}

func TestFieldValidation_CarriesField(t *testing.T) {
	err := NewFieldValidation("phone", "Valid phone number is required")
	if err.Field != "phone" || err.Type != TypeValidation {
		t.Errorf("unexpected error %+v", err)
	}
}
