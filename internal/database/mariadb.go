// Package database owns the MariaDB pool, the Redis client and the schema
// migrations. Connections are opened once at startup and handed to the
// plugins through the app container.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	// MariaDB driver -- imported for side effect of registering the driver.
	_ "github.com/go-sql-driver/mysql"

	"github.com/smart-asd/portal/internal/config"
)

// Startup retry policy shared by MariaDB and Redis. Containers in the same
// compose stack routinely come up in the wrong order.
const (
	pingAttempts   = 10
	pingTimeout    = 5 * time.Second
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
)

// NewMariaDB opens the MariaDB pool, applies pool limits from config and
// blocks until the server answers a ping or the retry budget runs out.
func NewMariaDB(cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening mariadb connection: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := pingWithRetry("mariadb", db.PingContext); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// pingWithRetry calls ping with exponential backoff until it succeeds.
func pingWithRetry(name string, ping func(context.Context) error) error {
	backoff := initialBackoff
	var lastErr error

	for attempt := 1; attempt <= pingAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
		lastErr = ping(ctx)
		cancel()

		if lastErr == nil {
			return nil
		}
		if attempt == pingAttempts {
			break
		}

		slog.Warn(name+" not ready, retrying...",
			slog.Int("attempt", attempt),
			slog.Int("max_retries", pingAttempts),
			slog.Duration("backoff", backoff),
			slog.Any("error", lastErr),
		)
		time.Sleep(backoff)
		backoff = min(backoff*2, maxBackoff)
	}

	return fmt.Errorf("pinging %s after %d attempts: %w", name, pingAttempts, lastErr)
}
