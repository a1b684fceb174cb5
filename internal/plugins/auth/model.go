// Package auth handles authentication, stateless sessions, one-time
// passcodes and role-based route gating for the portal. It provides
// registration with email verification, login, password reset and the
// request gate every other route sits behind.
//
// This is a CORE plugin -- always enabled, cannot be disabled.
package auth

import (
	"time"
)

// Role names as stored in the roles table and carried in session claims.
const (
	RoleAdmin      = "ADMIN"
	RoleDoctor     = "DOCTOR"
	RoleTherapist  = "THERAPIST"
	RoleCounsellor = "COUNSELLOR"
	RolePatient    = "PATIENT"
)

// selfServiceRoles are the roles a visitor may pick on the registration
// form. ADMIN accounts are provisioned out of band.
var selfServiceRoles = map[string]bool{
	RolePatient:    true,
	RoleDoctor:     true,
	RoleTherapist:  true,
	RoleCounsellor: true,
}

// User represents a registered portal user. PasswordHash is the stored
// credential and is never serialized.
type User struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	Phone         string     `json:"phone"`
	FullName      string     `json:"full_name"`
	RoleID        int        `json:"-"`
	Role          string     `json:"role"`
	PasswordHash  string     `json:"-"` // Never expose in JSON responses.
	IsActive      bool       `json:"is_active"`
	IsVerified    bool       `json:"is_verified"`
	InstitutionID *string    `json:"institution_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	LastLoginAt   *time.Time `json:"last_login_at,omitempty"`
}

// Role is a row of the roles table.
type Role struct {
	ID   int
	Name string
}

// PatientProfile is the side record created alongside a PATIENT account.
// The registering user is the guardian.
type PatientProfile struct {
	ID              string
	PatientUniqueID string
	FirstName       string
	LastName        string
	DOB             time.Time
	Gender          string
	GuardianID      string
	GuardianName    string
	GuardianPhone   string
}

// --- Request DTOs (bound from HTTP requests) ---

// LoginRequest holds the login payload.
type LoginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// RegisterRequest holds the registration payload.
type RegisterRequest struct {
	Role         string `json:"role" form:"role"`
	FullName     string `json:"fullName" form:"fullName"`
	Email        string `json:"email" form:"email"`
	Password     string `json:"password" form:"password"`
	Phone        string `json:"phone" form:"phone"`
	DOB          string `json:"dob" form:"dob"`
	GuardianName string `json:"guardianName" form:"guardianName"`
}

// VerifyEmailRequest holds the email verification payload.
type VerifyEmailRequest struct {
	Email string `json:"email" form:"email"`
	OTP   string `json:"otp" form:"otp"`
}

// EmailRequest holds payloads that carry only an email (forgot password,
// resend code).
type EmailRequest struct {
	Email string `json:"email" form:"email"`
}

// ResetPasswordRequest holds the password reset payload.
type ResetPasswordRequest struct {
	Email       string `json:"email" form:"email"`
	OTP         string `json:"otp" form:"otp"`
	NewPassword string `json:"newPassword" form:"newPassword"`
}

// --- Service Input DTOs (passed from handler to service) ---

// LoginInput is the input for authenticating a user.
type LoginInput struct {
	Email    string
	Password string
}

// RegisterInput is the input for creating a new account.
type RegisterInput struct {
	Role         string
	FullName     string
	Email        string
	Password     string
	Phone        string
	DOB          string // YYYY-MM-DD, PATIENT only.
	GuardianName string // PATIENT only.
}

// ResetPasswordInput is the input for completing a password reset.
type ResetPasswordInput struct {
	Email       string
	Code        string
	NewPassword string
}

// RegisterResult reports a pending registration. The account exists but
// cannot log in until the emailed code is verified.
type RegisterResult struct {
	UserID string
	Email  string
}

// --- Session ---

// SessionClaims are the identity facts sealed inside a session token. The
// token is the session: there is no server-side session table.
type SessionClaims struct {
	UserID    string    `json:"uid"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	FullName  string    `json:"name"`
	IssuedAt  time.Time `json:"-"`
	ExpiresAt time.Time `json:"-"`
}

// --- One-time passcodes ---

// Purpose scopes a passcode to the flow that issued it. A registration
// code can never be spent on a password reset.
type Purpose string

// Passcode purposes.
const (
	PurposeRegistration  Purpose = "registration"
	PurposePasswordReset Purpose = "password-reset"
)

// Valid reports whether p is a known purpose.
func (p Purpose) Valid() bool {
	return p == PurposeRegistration || p == PurposePasswordReset
}

// Challenge is the persisted state of one issued passcode. At most one
// challenge exists per (email, purpose); generating a new code replaces it
// with a fresh ID.
type Challenge struct {
	// ID identifies this generation. Compare-and-swap checks it so a write
	// computed against a superseded challenge can never land on its successor.
	ID                string    `json:"id"`
	Email             string    `json:"email"`
	Purpose           Purpose   `json:"purpose"`
	CodeHash          string    `json:"code_hash"`
	ExpiresAt         time.Time `json:"expires_at"`
	AttemptsRemaining int       `json:"attempts_remaining"`
	Consumed          bool      `json:"consumed"`

	// Version increments on every successful write.
	Version int64 `json:"version"`
}

// --- Access policy ---

// AccessDecision is the gate's verdict for one request.
type AccessDecision struct {
	Allowed    bool
	RedirectTo string

	// Reason is "" when allowed, otherwise "unauthenticated" or "forbidden".
	Reason string
}

// Decision reasons.
const (
	ReasonUnauthenticated = "unauthenticated"
	ReasonForbidden       = "forbidden"
)
