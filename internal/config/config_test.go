package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ENV", "development")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Auth.SessionTTL != 7*24*time.Hour {
		t.Errorf("expected 7 day session TTL, got %s", cfg.Auth.SessionTTL)
	}
	if cfg.Auth.BcryptCost != 10 {
		t.Errorf("expected bcrypt cost 10, got %d", cfg.Auth.BcryptCost)
	}
	if cfg.OTP.TTL != 10*time.Minute {
		t.Errorf("expected 10 minute OTP TTL, got %s", cfg.OTP.TTL)
	}
	if cfg.OTP.MaxAttempts != 5 {
		t.Errorf("expected 5 OTP attempts, got %d", cfg.OTP.MaxAttempts)
	}
	if cfg.Auth.SecretKey == "" {
		t.Error("expected dev secret key fallback")
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected debug log level in development, got %s", cfg.LogLevel)
	}
}

func TestLoad_ProductionRequiresSecret(t *testing.T) {
	t.Setenv("ENV", "Production")
	t.Setenv("SECRET_KEY", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing SECRET_KEY in production")
	}

	t.Setenv("SECRET_KEY", "too-short")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for short SECRET_KEY in production")
	}

	t.Setenv("SECRET_KEY", strings.Repeat("k", 32))
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.IsProduction() {
		t.Error("expected production mode")
	}
	if cfg.LogLevel != "info" {
		t.Errorf("expected info log level in production, got %s", cfg.LogLevel)
	}
}

func TestLoad_RejectsUnknownOTPStore(t *testing.T) {
	t.Setenv("ENV", "development")
	t.Setenv("OTP_STORE", "memcached")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown OTP store")
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", User: "u", Password: "p@ss/word", Name: "portal"}
	dsn := d.DSN()
	if !strings.Contains(dsn, "tcp(db:3306)") {
		t.Errorf("expected default port appended, got %s", dsn)
	}
	if !strings.Contains(dsn, "parseTime=true") {
		t.Errorf("expected parseTime in DSN, got %s", dsn)
	}

	d.dsnOverride = "override"
	if d.DSN() != "override" {
		t.Error("expected DATABASE_URL override to win")
	}
}

func TestLoad_HTTPSettings(t *testing.T) {
	t.Setenv("CORS_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.HTTP.CORSOrigins) != 2 || cfg.HTTP.CORSOrigins[1] != "https://b.example" {
		t.Errorf("unexpected CORS origins %v", cfg.HTTP.CORSOrigins)
	}
	if len(cfg.HTTP.TrustedProxies) != 1 {
		t.Errorf("unexpected trusted proxies %v", cfg.HTTP.TrustedProxies)
	}
	if cfg.HTTP.MetricsPort != 9090 {
		t.Errorf("expected default metrics port 9090, got %d", cfg.HTTP.MetricsPort)
	}
}

func TestLoad_MetricsPortMustDiffer(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("METRICS_PORT", "9090")
	if _, err := Load(); err == nil {
		t.Error("expected error when METRICS_PORT equals PORT")
	}
}
