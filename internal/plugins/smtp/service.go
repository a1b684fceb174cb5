package smtp

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/mail"
	gosmtp "net/smtp"
	"strconv"
	"strings"
	"time"
)

// dialTimeout bounds connecting to the mail server when the caller's
// context has no earlier deadline.
const dialTimeout = 10 * time.Second

// MailService is the interface other plugins use to send email. The auth
// plugin's MailSender is a subset of it.
type MailService interface {
	SendMail(ctx context.Context, to []string, subject, body string) error
	IsConfigured(ctx context.Context) bool
}

// ErrNotConfigured is returned by SendMail when no host is set.
var ErrNotConfigured = errors.New("smtp is not configured")

// smtpService implements MailService.
type smtpService struct {
	settings Settings
	now      func() time.Time
}

// NewSMTPService creates a new SMTP service. An unknown encryption mode is
// an error so a typo cannot silently downgrade to plaintext.
func NewSMTPService(settings Settings) (MailService, error) {
	switch settings.Encryption {
	case EncryptionStartTLS, EncryptionSSL, EncryptionNone:
	default:
		return nil, fmt.Errorf("unknown smtp encryption %q", settings.Encryption)
	}
	if settings.Host != "" {
		if _, err := mail.ParseAddress(settings.FromAddress); err != nil {
			return nil, fmt.Errorf("invalid smtp from address %q: %w", settings.FromAddress, err)
		}
	}
	return &smtpService{settings: settings, now: time.Now}, nil
}

// IsConfigured returns true if a host is configured.
func (s *smtpService) IsConfigured(_ context.Context) bool {
	return s.settings.Host != ""
}

// SendMail sends a plain-text email. The context bounds the whole SMTP
// conversation.
func (s *smtpService) SendMail(ctx context.Context, to []string, subject, body string) error {
	if !s.IsConfigured(ctx) {
		return ErrNotConfigured
	}
	if len(to) == 0 {
		return errors.New("no recipients")
	}

	msg, err := s.buildMessage(to, subject, body)
	if err != nil {
		return err
	}

	from := s.settings.FromAddress
	host := s.settings.Host
	addr := net.JoinHostPort(host, strconv.Itoa(s.settings.Port))

	conn, err := s.dial(ctx, addr)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", addr, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(s.now().Add(2 * dialTimeout))
	}

	client, err := gosmtp.NewClient(conn, host)
	if err != nil {
		return fmt.Errorf("creating smtp client: %w", err)
	}
	defer client.Close()

	if s.settings.Encryption == EncryptionStartTLS {
		tlsConfig := &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12}
		if err := client.StartTLS(tlsConfig); err != nil {
			return fmt.Errorf("starting TLS: %w", err)
		}
	}

	if s.settings.Username != "" {
		// PlainAuth refuses to send credentials over an unencrypted
		// connection to anything but localhost.
		auth := gosmtp.PlainAuth("", s.settings.Username, s.settings.Password, host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("authenticating: %w", err)
		}
	}

	if err := sendMessage(client, from, to, msg); err != nil {
		return err
	}

	slog.Debug("mail sent",
		slog.Int("recipients", len(to)),
		slog.String("subject", subject),
	)
	return nil
}

// dial opens the transport: implicit TLS for "ssl", plain TCP otherwise.
func (s *smtpService) dial(ctx context.Context, addr string) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: dialTimeout}
	if s.settings.Encryption == EncryptionSSL {
		tlsDialer := &tls.Dialer{
			NetDialer: dialer,
			Config:    &tls.Config{ServerName: s.settings.Host, MinVersion: tls.VersionTLS12},
		}
		return tlsDialer.DialContext(ctx, "tcp", addr)
	}
	return dialer.DialContext(ctx, "tcp", addr)
}

// buildMessage renders an RFC 5322 message. Header values containing CR or
// LF are refused to prevent header injection.
func (s *smtpService) buildMessage(to []string, subject, body string) (string, error) {
	for _, v := range append([]string{subject}, to...) {
		if strings.ContainsAny(v, "\r\n") {
			return "", errors.New("mail header contains a line break")
		}
	}
	for _, addr := range to {
		if _, err := mail.ParseAddress(addr); err != nil {
			return "", fmt.Errorf("invalid recipient %q: %w", addr, err)
		}
	}

	from := mail.Address{Name: s.settings.FromName, Address: s.settings.FromAddress}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", from.String())
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "Date: %s\r\n", s.now().UTC().Format(time.RFC1123Z))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(strings.ReplaceAll(strings.ReplaceAll(body, "\r\n", "\n"), "\n", "\r\n"))
	return msg.String(), nil
}

// sendMessage handles MAIL FROM, RCPT TO, DATA for an existing SMTP client.
func sendMessage(client *gosmtp.Client, from string, to []string, msg string) error {
	if err := client.Mail(from); err != nil {
		return fmt.Errorf("MAIL FROM: %w", err)
	}
	for _, recipient := range to {
		if err := client.Rcpt(recipient); err != nil {
			return fmt.Errorf("RCPT TO %s: %w", recipient, err)
		}
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("DATA: %w", err)
	}
	if _, err := w.Write([]byte(msg)); err != nil {
		return fmt.Errorf("writing message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("closing data: %w", err)
	}
	return client.Quit()
}
