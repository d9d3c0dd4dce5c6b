package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPool creates a new pgx connection pool using the provided DSN.
// It pings the database to ensure the connection is valid.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool: %w", err)
	}

	// Use a short-lived context for the initial ping.
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

// schema is idempotent. users is owned by the identity service; it is created
// here only so a fresh database can boot.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS public.users (
		id           uuid PRIMARY KEY,
		email        text NOT NULL UNIQUE,
		display_name text,
		role         text NOT NULL DEFAULT 'client',
		is_active    boolean NOT NULL DEFAULT true,
		created_at   timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS public.record_collections (
		name       text PRIMARY KEY,
		records    jsonb NOT NULL DEFAULT '[]'::jsonb,
		version    bigint NOT NULL DEFAULT 0,
		updated_at timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS public.audit_events (
		id          bigserial PRIMARY KEY,
		actor_id    text NOT NULL,
		action      text NOT NULL,
		entity_ref  text NOT NULL,
		details     jsonb NOT NULL DEFAULT '{}'::jsonb,
		recorded_at timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS audit_events_entity_ref_idx ON public.audit_events (entity_ref)`,
}

// EnsureSchema creates the tables the service reads and writes.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
