package smtp

import (
	"context"
	"errors"
	"net"
	"net/textproto"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/smart-asd/portal/internal/config"
)

func testSettings() Settings {
	return Settings{
		Host:        "127.0.0.1",
		Port:        2525,
		FromAddress: "no-reply@smart-asd.org",
		FromName:    "SMART-ASD",
		Encryption:  EncryptionNone,
	}
}

func newTestService(t *testing.T, settings Settings) *smtpService {
	t.Helper()
	svc, err := NewSMTPService(settings)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s := svc.(*smtpService)
	s.now = func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }
	return s
}

func TestNewSMTPService_Validation(t *testing.T) {
	s := testSettings()
	s.Encryption = "tls1.0"
	if _, err := NewSMTPService(s); err == nil {
		t.Error("expected error for unknown encryption")
	}

	s = testSettings()
	s.FromAddress = "not an address"
	if _, err := NewSMTPService(s); err == nil {
		t.Error("expected error for invalid from address")
	}

	// No host: the from address is not checked.
	s.Host = ""
	if _, err := NewSMTPService(s); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestSettingsFromConfig_Defaults(t *testing.T) {
	s := SettingsFromConfig(config.SMTPConfig{Host: "mail.example.com", FromAddress: "a@example.com"})
	if s.Port != 587 || s.FromName != "SMART-ASD" || s.Encryption != EncryptionStartTLS {
		t.Errorf("unexpected defaults: %+v", s)
	}
}

func TestSendMail_NotConfigured(t *testing.T) {
	s := testSettings()
	s.Host = ""
	svc := newTestService(t, s)

	if svc.IsConfigured(context.Background()) {
		t.Error("expected unconfigured")
	}
	err := svc.SendMail(context.Background(), []string{"a@example.com"}, "Hi", "Body")
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}

func TestBuildMessage_RejectsHeaderInjection(t *testing.T) {
	svc := newTestService(t, testSettings())

	if _, err := svc.buildMessage([]string{"a@example.com"}, "Hi\r\nBcc: victim@example.com", "x"); err == nil {
		t.Error("expected error for CRLF in subject")
	}
	if _, err := svc.buildMessage([]string{"a@example.com\nBcc: victim@example.com"}, "Hi", "x"); err == nil {
		t.Error("expected error for LF in recipient")
	}
	if _, err := svc.buildMessage([]string{"not-an-address"}, "Hi", "x"); err == nil {
		t.Error("expected error for invalid recipient")
	}
}

func TestBuildMessage_Format(t *testing.T) {
	svc := newTestService(t, testSettings())

	msg, err := svc.buildMessage([]string{"a@example.com"}, "Your code", "line one\nline two")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{
		"From: \"SMART-ASD\" <no-reply@smart-asd.org>\r\n",
		"To: a@example.com\r\n",
		"Subject: Your code\r\n",
		"Date: Sun, 01 Mar 2026 09:00:00 +0000\r\n",
		"\r\n\r\nline one\r\nline two",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected message to contain %q, got:\n%s", want, msg)
		}
	}
}

// fakeSMTPServer accepts one session and returns what it received.
func fakeSMTPServer(t *testing.T) (port int, received <-chan string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	out := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		tp := textproto.NewConn(conn)

		var transcript strings.Builder
		_ = tp.PrintfLine("220 localhost ESMTP")
		for {
			line, err := tp.ReadLine()
			if err != nil {
				out <- transcript.String()
				return
			}
			transcript.WriteString(line + "\n")
			cmd := strings.ToUpper(line)
			switch {
			case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
				_ = tp.PrintfLine("250 localhost")
			case strings.HasPrefix(cmd, "DATA"):
				_ = tp.PrintfLine("354 go ahead")
				body, err := tp.ReadDotLines()
				if err != nil {
					out <- transcript.String()
					return
				}
				transcript.WriteString(strings.Join(body, "\n") + "\n")
				_ = tp.PrintfLine("250 queued")
			case strings.HasPrefix(cmd, "QUIT"):
				_ = tp.PrintfLine("221 bye")
				out <- transcript.String()
				return
			default:
				_ = tp.PrintfLine("250 OK")
			}
		}
	}()

	return ln.Addr().(*net.TCPAddr).Port, out
}

func TestSendMail_Delivers(t *testing.T) {
	port, received := fakeSMTPServer(t)
	s := testSettings()
	s.Port = port
	svc := newTestService(t, s)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := svc.SendMail(ctx, []string{"guardian@example.com"}, "Your code", "Code: 123456"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case transcript := <-received:
		for _, want := range []string{
			"MAIL FROM:<no-reply@smart-asd.org>",
			"RCPT TO:<guardian@example.com>",
			"Subject: Your code",
			"Code: 123456",
		} {
			if !strings.Contains(transcript, want) {
				t.Errorf("expected transcript to contain %q, got:\n%s", want, transcript)
			}
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server never finished the session")
	}
}

func TestSendMail_ConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	s := testSettings()
	s.Port = port
	svc := newTestService(t, s)

	err = svc.SendMail(context.Background(), []string{"a@example.com"}, "Hi", "x")
	if err == nil || !strings.Contains(err.Error(), "127.0.0.1:"+strconv.Itoa(port)) {
		t.Errorf("expected connection error naming the address, got %v", err)
	}
}
