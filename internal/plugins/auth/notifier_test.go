package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

// mockMailSender implements MailSender for testing.
type mockMailSender struct {
	configured bool
	sendErr    error

	to      []string
	subject string
	body    string
}

func (m *mockMailSender) SendMail(_ context.Context, to []string, subject, body string) error {
	m.to, m.subject, m.body = to, subject, body
	return m.sendErr
}

func (m *mockMailSender) IsConfigured(context.Context) bool { return m.configured }

func TestMailNotifier_Sends(t *testing.T) {
	mail := &mockMailSender{configured: true}
	n := NewMailNotifier(mail, 15*time.Minute, false)

	if err := n.SendOTP(context.Background(), "a@example.com", "123456", PurposePasswordReset); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mail.to) != 1 || mail.to[0] != "a@example.com" {
		t.Errorf("unexpected recipients %v", mail.to)
	}
	if !strings.Contains(mail.subject, "password reset") {
		t.Errorf("unexpected subject %q", mail.subject)
	}
	if !strings.Contains(mail.body, "123456") || !strings.Contains(mail.body, "15 minutes") {
		t.Errorf("unexpected body %q", mail.body)
	}
}

func TestMailNotifier_Unconfigured(t *testing.T) {
	mail := &mockMailSender{}

	if err := NewMailNotifier(mail, 0, false).SendOTP(context.Background(), "a@example.com", "123456", PurposeRegistration); !errors.Is(err, errMailNotConfigured) {
		t.Errorf("expected errMailNotConfigured, got %v", err)
	}
	// Development swallows the failure and logs the code instead.
	if err := NewMailNotifier(mail, 0, true).SendOTP(context.Background(), "a@example.com", "123456", PurposeRegistration); err != nil {
		t.Errorf("expected nil in development, got %v", err)
	}
	if err := NewMailNotifier(nil, 0, true).SendOTP(context.Background(), "a@example.com", "123456", PurposeRegistration); err != nil {
		t.Errorf("expected nil without a sender in development, got %v", err)
	}
}

func TestMailNotifier_WrapsSendError(t *testing.T) {
	mail := &mockMailSender{configured: true, sendErr: errors.New("550 mailbox unavailable")}
	err := NewMailNotifier(mail, time.Minute, false).SendOTP(context.Background(), "a@example.com", "123456", PurposeRegistration)
	if err == nil || !strings.Contains(err.Error(), "registration") {
		t.Errorf("expected wrapped error naming the purpose, got %v", err)
	}
}
