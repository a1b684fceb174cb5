package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// MailSender is the slice of the smtp plugin the auth plugin needs.
type MailSender interface {
	SendMail(ctx context.Context, to []string, subject, body string) error
	IsConfigured(ctx context.Context) bool
}

// OTPNotifier delivers a raw passcode to its owner. Delivery is
// fire-and-forget from the service's point of view: a failure is logged
// and never undoes the challenge.
type OTPNotifier interface {
	SendOTP(ctx context.Context, email, code string, purpose Purpose) error
}

// errMailNotConfigured is returned when no SMTP server is set up.
var errMailNotConfigured = errors.New("smtp is not configured")

// mailNotifier renders passcode emails and hands them to a MailSender.
type mailNotifier struct {
	mail MailSender
	ttl  time.Duration

	// echoCodes logs undeliverable codes at debug level. Development only,
	// so registration works on a laptop without an SMTP server.
	echoCodes bool
}

// NewMailNotifier creates an OTPNotifier over mail. ttl is quoted in the
// message body and should match the OTP manager's policy.
func NewMailNotifier(mail MailSender, ttl time.Duration, echoCodes bool) OTPNotifier {
	if ttl <= 0 {
		ttl = DefaultOTPTTL
	}
	return &mailNotifier{mail: mail, ttl: ttl, echoCodes: echoCodes}
}

// SendOTP implements OTPNotifier.
func (n *mailNotifier) SendOTP(ctx context.Context, email, code string, purpose Purpose) error {
	if n.mail == nil || !n.mail.IsConfigured(ctx) {
		if n.echoCodes {
			slog.Debug("smtp not configured, passcode not mailed",
				slog.String("email", email),
				slog.String("purpose", string(purpose)),
				slog.String("code", code),
			)
			return nil
		}
		return errMailNotConfigured
	}

	subject, body := otpMessage(code, purpose, n.ttl)
	if err := n.mail.SendMail(ctx, []string{email}, subject, body); err != nil {
		return fmt.Errorf("sending %s code: %w", purpose, err)
	}
	return nil
}

// otpMessage builds the subject and plain-text body for a passcode email.
func otpMessage(code string, purpose Purpose, ttl time.Duration) (string, string) {
	minutes := int(ttl.Minutes())
	switch purpose {
	case PurposePasswordReset:
		return "Your SMART-ASD password reset code",
			fmt.Sprintf("Use this code to reset your password: %s\n\n"+
				"The code expires in %d minutes. If you did not ask to reset your password, you can ignore this email.\n", code, minutes)
	default:
		return "Verify your SMART-ASD account",
			fmt.Sprintf("Your verification code is: %s\n\n"+
				"The code expires in %d minutes.\n", code, minutes)
	}
}
