package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditRecorder appends to the audit log. Best effort.
type AuditRecorder interface {
	Record(ctx context.Context, actorID, action, entityRef string, details map[string]any) error
}

type LogAuditRecorder struct {
	log *slog.Logger
}

func NewLogAuditRecorder(log *slog.Logger) *LogAuditRecorder {
	return &LogAuditRecorder{log: log}
}

func (r *LogAuditRecorder) Record(ctx context.Context, actorID, action, entityRef string, details map[string]any) error {
	r.log.InfoContext(ctx, "audit", "actor_id", actorID, "action", action, "entity", entityRef, "details", details)
	return nil
}

// PgAuditRecorder inserts into public.audit_events.
type PgAuditRecorder struct {
	pool *pgxpool.Pool
}

func NewPgAuditRecorder(pool *pgxpool.Pool) *PgAuditRecorder {
	return &PgAuditRecorder{pool: pool}
}

func (r *PgAuditRecorder) Record(ctx context.Context, actorID, action, entityRef string, details map[string]any) error {
	payload, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("encode audit details: %w", err)
	}

	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Insert("public.audit_events").
		Columns("actor_id", "action", "entity_ref", "details").
		Values(actorID, action, entityRef, squirrel.Expr("?::jsonb", string(payload))).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert audit query failed: %w", err)
	}

	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert audit event failed: %w", err)
	}
	return nil
}
