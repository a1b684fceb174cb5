// Package smtp sends the portal's outbound email: verification and
// password-reset codes. Settings come from the environment
// (config.SMTPConfig); with no host configured the service reports itself
// unconfigured and sends nothing.
package smtp

import (
	"github.com/smart-asd/portal/internal/config"
)

// Encryption modes.
const (
	EncryptionStartTLS = "starttls"
	EncryptionSSL      = "ssl"
	EncryptionNone     = "none"
)

// Settings is the SMTP configuration the service sends with.
type Settings struct {
	Host        string
	Port        int
	Username    string
	Password    string
	FromAddress string
	FromName    string

	// Encryption is "starttls", "ssl", or "none".
	Encryption string
}

// SettingsFromConfig copies the environment configuration, filling in the
// defaults for an empty port, sender name or encryption mode.
func SettingsFromConfig(cfg config.SMTPConfig) Settings {
	s := Settings{
		Host:        cfg.Host,
		Port:        cfg.Port,
		Username:    cfg.Username,
		Password:    cfg.Password,
		FromAddress: cfg.FromAddress,
		FromName:    cfg.FromName,
		Encryption:  cfg.Encryption,
	}
	if s.Port <= 0 {
		s.Port = 587
	}
	if s.FromName == "" {
		s.FromName = "SMART-ASD"
	}
	if s.Encryption == "" {
		s.Encryption = EncryptionStartTLS
	}
	return s
}
