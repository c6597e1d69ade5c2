package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

const (
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 25
	defaultConnMaxLifetime = 5 * time.Minute
	defaultConnMaxIdleTime = 1 * time.Minute
)

// NewPostgresConnection creates and returns a new PostgreSQL database connection.
// It also pings the database to ensure connectivity.
func NewPostgresConnection(dataSourceName string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(defaultMaxOpenConns)
	db.SetMaxIdleConns(defaultMaxIdleConns)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)
	db.SetConnMaxIdleTime(defaultConnMaxIdleTime)

	if err = db.Ping(); err != nil {
		db.Close() // Close the connection if ping fails
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
    id               TEXT PRIMARY KEY,
    email            TEXT NOT NULL DEFAULT '',
    first_name       TEXT NOT NULL DEFAULT '',
    last_name        TEXT NOT NULL DEFAULT '',
    phone            TEXT NOT NULL DEFAULT '',
    telegram_chat_id TEXT NOT NULL DEFAULT '',
    notify_email     BOOLEAN NOT NULL DEFAULT TRUE,
    notify_sms       BOOLEAN NOT NULL DEFAULT FALSE,
    notify_telegram  BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS pnr_subscriptions (
    id              TEXT PRIMARY KEY,
    user_id         TEXT NOT NULL,
    pnr_number      CHAR(10) NOT NULL,
    passenger_name  TEXT NOT NULL DEFAULT '',
    journey_details JSONB NOT NULL DEFAULT '{}',
    current_status  JSONB,
    status_history  JSONB NOT NULL DEFAULT '[]',
    is_active       BOOLEAN NOT NULL DEFAULT TRUE,
    last_checked    TIMESTAMPTZ,
    version         BIGINT NOT NULL DEFAULT 0,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CONSTRAINT pnr_subscriptions_user_pnr_unique UNIQUE (user_id, pnr_number)
);

CREATE INDEX IF NOT EXISTS pnr_subscriptions_active_idx ON pnr_subscriptions (created_at) WHERE is_active;

CREATE TABLE IF NOT EXISTS notification_history (
    id                  TEXT PRIMARY KEY,
    user_id             TEXT NOT NULL,
    pnr_subscription_id TEXT NOT NULL,
    notification_type   TEXT NOT NULL,
    subject             TEXT NOT NULL DEFAULT '',
    message             TEXT NOT NULL,
    delivery_status     TEXT NOT NULL CHECK (delivery_status IN ('pending', 'sent', 'failed')),
    delivered_at        TIMESTAMPTZ,
    error_message       TEXT NOT NULL DEFAULT '',
    created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS notification_history_subscription_idx
    ON notification_history (user_id, pnr_subscription_id, created_at);
`

// Migrate creates the tables the tracker needs when they do not exist yet.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
