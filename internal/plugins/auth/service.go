package auth

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/smart-asd/portal/internal/apperror"
	"github.com/smart-asd/portal/internal/sanitize"
)

// Input limits. bcrypt ignores everything past 72 bytes, so longer
// passwords are refused rather than silently truncated.
const (
	minPasswordLen = 8
	maxPasswordLen = 72
	minPhoneLen    = 10
	maxFullNameLen = 200
	dobLayout      = "2006-01-02"
)

// Audit actions recorded by the auth plugin.
const (
	AuditUserRegistered = "USER_REGISTERED"
	AuditEmailVerified  = "EMAIL_VERIFIED"
	AuditPasswordReset  = "PASSWORD_RESET_SUCCESS"
	AuditLogout         = "LOGOUT"
)

// AuditRecorder is the audit sink. The audit plugin implements it.
type AuditRecorder interface {
	RecordEvent(ctx context.Context, action, resourceType, resourceID, severity string) error
}

// AuthService defines the business logic contract for authentication.
// Handlers call these methods -- they never touch the repository directly.
// Every error returned is an *apperror.AppError safe to show the client.
type AuthService interface {
	Register(ctx context.Context, input RegisterInput) (*RegisterResult, error)
	VerifyEmail(ctx context.Context, email, code string) error
	ResendVerification(ctx context.Context, email string) error
	Login(ctx context.Context, input LoginInput) (token string, user *User, err error)
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, input ResetPasswordInput) error
	Logout(ctx context.Context, session *SessionClaims)
	ValidateSession(token string) *SessionClaims
}

// ServiceDeps bundles the collaborators of the auth service.
type ServiceDeps struct {
	Repo     UserRepository
	Hasher   PasswordHasher
	OTP      OTPManager
	Codec    SessionCodec
	Notifier OTPNotifier
	Audit    AuditRecorder
	Metrics  MetricsRecorder
}

// authService implements AuthService.
type authService struct {
	repo     UserRepository
	hasher   PasswordHasher
	otp      OTPManager
	codec    SessionCodec
	notifier OTPNotifier
	audit    AuditRecorder
	metrics  MetricsRecorder
	now      func() time.Time

	// dummyHash is compared against when the email is unknown so a miss
	// costs the same bcrypt work as a wrong password.
	dummyOnce sync.Once
	dummyHash string
}

// NewAuthService creates a new auth service with the given dependencies.
func NewAuthService(deps ServiceDeps) AuthService {
	if deps.Metrics == nil {
		deps.Metrics = NopMetrics{}
	}
	return &authService{
		repo:     deps.Repo,
		hasher:   deps.Hasher,
		otp:      deps.OTP,
		codec:    deps.Codec,
		notifier: deps.Notifier,
		audit:    deps.Audit,
		metrics:  deps.Metrics,
		now:      time.Now,
	}
}

// Register creates an active but unverified account and emails a
// registration code. PATIENT registrations that include a date of birth
// and guardian name also get a patient profile.
func (s *authService) Register(ctx context.Context, input RegisterInput) (*RegisterResult, error) {
	input.Role = strings.ToUpper(strings.TrimSpace(input.Role))
	input.FullName = sanitize.Text(input.FullName)
	input.Email = normalizeEmail(input.Email)
	input.Phone = strings.TrimSpace(input.Phone)
	input.GuardianName = sanitize.Text(input.GuardianName)

	dob, err := validateRegisterInput(&input, s.now())
	if err != nil {
		return nil, err
	}

	// Check for duplicates before doing expensive hashing.
	_, err = s.repo.FindByEmailOrPhone(ctx, input.Email, input.Phone)
	if err == nil {
		return nil, apperror.NewDuplicateAccount()
	}
	if !apperror.HasType(err, apperror.TypeNotFound) {
		return nil, apperror.NewInternal(fmt.Errorf("checking existing account: %w", err))
	}

	role, err := s.repo.FindRoleByName(ctx, input.Role)
	if err != nil {
		if apperror.HasType(err, apperror.TypeNotFound) {
			return nil, apperror.NewFieldValidation("role", "Invalid role")
		}
		return nil, apperror.NewInternal(fmt.Errorf("finding role: %w", err))
	}

	hash, err := s.hasher.Hash(ctx, input.Password)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("hashing password: %w", err))
	}

	user := &User{
		ID:           uuid.NewString(),
		Email:        input.Email,
		Phone:        input.Phone,
		FullName:     input.FullName,
		RoleID:       role.ID,
		Role:         role.Name,
		PasswordHash: hash,
		// Everyone starts active; login is still gated on IsVerified.
		IsActive:   true,
		IsVerified: false,
		CreatedAt:  s.now().UTC(),
	}

	var patient *PatientProfile
	if user.Role == RolePatient && !dob.IsZero() && input.GuardianName != "" {
		patient, err = s.newPatientProfile(user, dob, input.GuardianName)
		if err != nil {
			return nil, apperror.NewInternal(fmt.Errorf("building patient profile: %w", err))
		}
	}

	if err := s.repo.Create(ctx, user, patient); err != nil {
		if apperror.HasType(err, apperror.TypeDuplicateAccount) {
			return nil, err
		}
		return nil, apperror.NewInternal(fmt.Errorf("creating user: %w", err))
	}

	slog.Info("user registered",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
		slog.String("role", user.Role),
		slog.Bool("patient_profile", patient != nil),
	)
	s.record(ctx, AuditUserRegistered, user.ID, "INFO")

	// The account exists either way; a lost code can be re-sent.
	s.issueCode(ctx, user.Email, PurposeRegistration)

	return &RegisterResult{UserID: user.ID, Email: user.Email}, nil
}

// VerifyEmail spends a registration code and marks the account verified.
func (s *authService) VerifyEmail(ctx context.Context, email, code string) error {
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return err
	}
	if err := validateCode(code); err != nil {
		return err
	}

	if err := s.otp.Verify(ctx, email, code, PurposeRegistration); err != nil {
		return err
	}

	if err := s.repo.MarkVerified(ctx, email); err != nil {
		return apperror.NewInternal(fmt.Errorf("marking %s verified: %w", email, err))
	}

	slog.Info("email verified", slog.String("email", email))
	s.record(ctx, AuditEmailVerified, email, "INFO")
	return nil
}

// ResendVerification issues a new registration code for an existing,
// still unverified account. The response never reveals whether that was
// the case.
func (s *authService) ResendVerification(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return err
	}

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if !apperror.HasType(err, apperror.TypeNotFound) {
			slog.Error("resend verification lookup failed",
				slog.String("email", email),
				slog.Any("error", err),
			)
		}
		return nil
	}
	if user.IsVerified {
		return nil
	}

	s.issueCode(ctx, email, PurposeRegistration)
	return nil
}

// Login authenticates a user by email and password and returns a sealed
// session token. Unknown emails and wrong passwords fail identically.
func (s *authService) Login(ctx context.Context, input LoginInput) (string, *User, error) {
	email := normalizeEmail(input.Email)
	if err := validateEmail(email); err != nil {
		return "", nil, err
	}
	if input.Password == "" {
		return "", nil, apperror.NewFieldValidation("password", "Password is required")
	}

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if apperror.HasType(err, apperror.TypeNotFound) {
			s.hasher.Verify(ctx, input.Password, s.timingHash(ctx))
			s.metrics.LoginAttempt(apperror.TypeInvalidCredentials)
			return "", nil, apperror.NewInvalidCredentials()
		}
		s.metrics.LoginAttempt(apperror.TypeInternal)
		return "", nil, apperror.NewInternal(fmt.Errorf("finding user: %w", err))
	}

	if !s.hasher.Verify(ctx, input.Password, user.PasswordHash) {
		s.metrics.LoginAttempt(apperror.TypeInvalidCredentials)
		return "", nil, apperror.NewInvalidCredentials()
	}

	if !user.IsActive {
		s.metrics.LoginAttempt(apperror.TypeAccountDisabled)
		return "", nil, apperror.NewAccountDisabled()
	}
	if !user.IsVerified {
		s.metrics.LoginAttempt(apperror.TypeAccountUnverified)
		return "", nil, apperror.NewAccountUnverified()
	}

	token, err := s.codec.Encode(SessionClaims{
		UserID:   user.ID,
		Email:    user.Email,
		Role:     user.Role,
		FullName: user.FullName,
	})
	if err != nil {
		s.metrics.LoginAttempt(apperror.TypeInternal)
		return "", nil, apperror.NewInternal(fmt.Errorf("encoding session: %w", err))
	}

	// Update the user's last login timestamp (fire-and-forget, non-critical).
	if err := s.repo.UpdateLastLogin(ctx, user.ID); err != nil {
		slog.Warn("failed to update last login",
			slog.String("user_id", user.ID),
			slog.Any("error", err),
		)
	}

	s.metrics.LoginAttempt("success")
	slog.Info("user logged in",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
		slog.String("role", user.Role),
	)

	return token, user, nil
}

// RequestPasswordReset emails a reset code if the account exists. It
// returns nil for unknown emails too, so the endpoint cannot be used to
// probe for accounts.
func (s *authService) RequestPasswordReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return err
	}

	if _, err := s.repo.FindByEmail(ctx, email); err != nil {
		if !apperror.HasType(err, apperror.TypeNotFound) {
			slog.Error("password reset lookup failed",
				slog.String("email", email),
				slog.Any("error", err),
			)
		}
		return nil
	}

	s.issueCode(ctx, email, PurposePasswordReset)
	return nil
}

// ResetPassword spends a password-reset code and stores the new password.
func (s *authService) ResetPassword(ctx context.Context, input ResetPasswordInput) error {
	email := normalizeEmail(input.Email)
	if err := validateEmail(email); err != nil {
		return err
	}
	if err := validateCode(input.Code); err != nil {
		return err
	}
	if err := validatePassword("newPassword", input.NewPassword); err != nil {
		return err
	}

	// Hash first: a hashing failure must not spend the code.
	hash, err := s.hasher.Hash(ctx, input.NewPassword)
	if err != nil {
		return apperror.NewInternal(fmt.Errorf("hashing password: %w", err))
	}

	if err := s.otp.Verify(ctx, email, input.Code, PurposePasswordReset); err != nil {
		return err
	}

	if err := s.repo.UpdatePassword(ctx, email, hash); err != nil {
		// The code is already consumed; the user has to request a new one.
		slog.Error("password reset code spent but password not stored",
			slog.String("email", email),
			slog.Any("error", err),
		)
		return apperror.NewInternal(fmt.Errorf("updating password: %w", err))
	}

	slog.Info("password reset", slog.String("email", email))
	s.record(ctx, AuditPasswordReset, email, "INFO")
	return nil
}

// Logout records the event. Sessions are stateless: the caller discards
// the cookie and the token stays technically valid until it expires.
func (s *authService) Logout(ctx context.Context, session *SessionClaims) {
	if session == nil {
		return
	}
	slog.Info("user logged out", slog.String("user_id", session.UserID))
	s.record(ctx, AuditLogout, session.UserID, "INFO")
}

// ValidateSession decodes a session token; nil means no session.
func (s *authService) ValidateSession(token string) *SessionClaims {
	if token == "" {
		return nil
	}
	return s.codec.Decode(token)
}

// --- Helpers ---

// issueCode generates a code and hands it to the notifier. Failures are
// logged; the caller's response does not change.
func (s *authService) issueCode(ctx context.Context, email string, purpose Purpose) {
	code, err := s.otp.Generate(ctx, email, purpose)
	if err != nil {
		slog.Error("failed to generate otp",
			slog.String("email", email),
			slog.String("purpose", string(purpose)),
			slog.Any("error", err),
		)
		return
	}

	if s.notifier == nil {
		return
	}
	if err := s.notifier.SendOTP(ctx, email, code, purpose); err != nil {
		slog.Warn("failed to deliver otp",
			slog.String("email", email),
			slog.String("purpose", string(purpose)),
			slog.Any("error", err),
		)
	}
}

// record writes an audit event, logging instead of failing the request.
func (s *authService) record(ctx context.Context, action, resourceID, severity string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.RecordEvent(ctx, action, "User", resourceID, severity); err != nil {
		slog.Warn("failed to record audit event",
			slog.String("action", action),
			slog.Any("error", err),
		)
	}
}

// timingHash lazily builds the hash compared against for unknown emails.
func (s *authService) timingHash(ctx context.Context) string {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash(ctx, uuid.NewString())
		if err != nil {
			slog.Warn("failed to build timing hash", slog.Any("error", err))
			return
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}

// newPatientProfile builds the side record for a PATIENT registration.
func (s *authService) newPatientProfile(user *User, dob time.Time, guardianName string) (*PatientProfile, error) {
	uniqueID, err := patientUniqueID(s.now())
	if err != nil {
		return nil, err
	}

	first, last, _ := strings.Cut(user.FullName, " ")
	return &PatientProfile{
		ID:              uuid.NewString(),
		PatientUniqueID: uniqueID,
		FirstName:       first,
		LastName:        strings.TrimSpace(last),
		DOB:             dob,
		Gender:          "Not Specified",
		GuardianID:      user.ID,
		GuardianName:    guardianName,
		GuardianPhone:   user.Phone,
	}, nil
}

const patientIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// patientUniqueID returns an identifier like SMART-2026-7QX2LD.
func patientUniqueID(now time.Time) (string, error) {
	suffix := make([]byte, 6)
	limit := big.NewInt(int64(len(patientIDAlphabet)))
	for i := range suffix {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		suffix[i] = patientIDAlphabet[n.Int64()]
	}
	return fmt.Sprintf("SMART-%d-%s", now.Year(), suffix), nil
}

// --- Validation helpers ---

// validateRegisterInput checks the registration form and returns the parsed
// date of birth (zero when none was given).
func validateRegisterInput(input *RegisterInput, now time.Time) (time.Time, error) {
	if !selfServiceRoles[input.Role] {
		return time.Time{}, apperror.NewFieldValidation("role", "Invalid role")
	}
	if input.FullName == "" {
		return time.Time{}, apperror.NewFieldValidation("fullName", "Full name is required")
	}
	if len(input.FullName) > maxFullNameLen {
		return time.Time{}, apperror.NewFieldValidation("fullName", "Full name must be at most 200 characters")
	}
	if err := validateEmail(input.Email); err != nil {
		return time.Time{}, err
	}
	if err := validatePassword("password", input.Password); err != nil {
		return time.Time{}, err
	}
	if len(input.Phone) < minPhoneLen {
		return time.Time{}, apperror.NewFieldValidation("phone", "Valid phone number is required")
	}

	var dob time.Time
	if input.DOB != "" {
		parsed, err := time.Parse(dobLayout, strings.TrimSpace(input.DOB))
		if err != nil {
			return time.Time{}, apperror.NewFieldValidation("dob", "Date of birth must be in YYYY-MM-DD format")
		}
		if parsed.After(now) {
			return time.Time{}, apperror.NewFieldValidation("dob", "Date of birth cannot be in the future")
		}
		dob = parsed
	}
	return dob, nil
}

func validateEmail(email string) error {
	if email == "" {
		return apperror.NewFieldValidation("email", "Valid email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return apperror.NewFieldValidation("email", "Valid email is required")
	}
	return nil
}

func validatePassword(field, password string) error {
	if len(password) < minPasswordLen {
		return apperror.NewFieldValidation(field, "Password must be at least 8 characters")
	}
	if len(password) > maxPasswordLen {
		return apperror.NewFieldValidation(field, "Password must be at most 72 bytes")
	}
	return nil
}

func validateCode(code string) error {
	if len(code) != otpDigits {
		return apperror.NewFieldValidation("otp", "OTP must be 6 digits")
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return apperror.NewFieldValidation("otp", "OTP must be 6 digits")
		}
	}
	return nil
}
