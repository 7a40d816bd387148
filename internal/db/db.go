// internal/db/db.go
package db

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq"
)

var DB *sql.DB

// DSN builds a Postgres URL from the split DB_* settings.
func DSN(user, pass, host, port, name string) string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		user, pass, host, port, name,
	)
}

// Init opens the package-level pool and fails hard when the database is
// unreachable.
func Init(dsn string) {
	var err error
	DB, err = Open(dsn)
	if err != nil {
		log.Fatalf("failed to connect to DB: %v", err)
	}
	log.Println("✅ Connected to database")
}

// Open returns a pinged connection pool.
func Open(dsn string) (*sql.DB, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	conn.SetMaxOpenConns(10)
	conn.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return conn, nil
}

// EnsureSchema creates the tables when they are missing. Safe to run on every
// start.
func EnsureSchema(ctx context.Context, conn *sql.DB) error {
	if _, err := conn.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	log.Println("✅ Schema ready")
	return nil
}

const Schema = `
CREATE TABLE IF NOT EXISTS records (
    id                   TEXT PRIMARY KEY,
    first_name           TEXT NOT NULL DEFAULT '',
    last_name            TEXT NOT NULL DEFAULT '',
    phone                TEXT NOT NULL DEFAULT '',
    email                TEXT NOT NULL DEFAULT '',
    deceased_first_name  TEXT NOT NULL DEFAULT '',
    deceased_last_name   TEXT NOT NULL DEFAULT '',
    reference_date       DATE,
    lead_time_days       INTEGER NOT NULL DEFAULT 0 CHECK (lead_time_days >= 0),
    next_occurrence_date DATE,
    override_subject     TEXT NOT NULL DEFAULT '',
    override_body        TEXT NOT NULL DEFAULT '',
    suspend_sending      BOOLEAN NOT NULL DEFAULT FALSE,
    created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS send_log (
    id         TEXT PRIMARY KEY,
    record_id  TEXT NOT NULL,
    due_date   DATE NOT NULL,
    subject    TEXT NOT NULL DEFAULT '',
    body       TEXT NOT NULL DEFAULT '',
    recipients TEXT[] NOT NULL DEFAULT '{}',
    status     TEXT NOT NULL CHECK (status IN ('ok', 'test', 'error')),
    error      TEXT NOT NULL DEFAULT '',
    sent_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS send_log_record_idx ON send_log (record_id, sent_at);
CREATE UNIQUE INDEX IF NOT EXISTS send_log_ok_once
    ON send_log (record_id, due_date) WHERE status = 'ok';

CREATE TABLE IF NOT EXISTS sweep_watermark (
    name     TEXT PRIMARY KEY,
    last_run DATE NOT NULL
);

CREATE TABLE IF NOT EXISTS templates (
    id         SERIAL PRIMARY KEY,
    subject    TEXT NOT NULL,
    body       TEXT NOT NULL,
    active     BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`
