package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nekogravitycat/studio-booking-backend/internal/pkg/apperror"
)

// CollectionsTable holds one row per collection; records is the whole JSON array.
const CollectionsTable = "public.record_collections"

// PostgresCollection keeps the flat-array layout but serializes writers with a
// row-level lock (SELECT ... FOR UPDATE), so it stays correct across processes.
type PostgresCollection[T any] struct {
	pool *pgxpool.Pool
	name string
}

// NewPostgresCollection creates a collection stored in CollectionsTable under name.
func NewPostgresCollection[T any](pool *pgxpool.Pool, name string) *PostgresCollection[T] {
	return &PostgresCollection[T]{pool: pool, name: name}
}

func (p *PostgresCollection[T]) Name() string {
	return p.name
}

func (p *PostgresCollection[T]) Load(ctx context.Context) ([]T, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select("records").
		From(CollectionsTable).
		Where(squirrel.Eq{"name": p.name}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build load collection query failed: %w", err)
	}

	var raw []byte
	if err := p.pool.QueryRow(ctx, query, args...).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, classify(err, ErrUnavailable)
	}
	return p.decode(raw)
}

func (p *PostgresCollection[T]) Update(ctx context.Context, fn func(records []T) ([]T, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return classify(err, ErrUnavailable)
	}
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

	ensure, args, err := psql.Insert(CollectionsTable).
		Columns("name", "records").
		Values(p.name, squirrel.Expr("'[]'::jsonb")).
		Suffix("ON CONFLICT (name) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build ensure collection query failed: %w", err)
	}
	if _, err := tx.Exec(ctx, ensure, args...); err != nil {
		return classify(err, ErrUnavailable)
	}

	lock, args, err := psql.Select("records").
		From(CollectionsTable).
		Where(squirrel.Eq{"name": p.name}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return fmt.Errorf("build lock collection query failed: %w", err)
	}
	var raw []byte
	if err := tx.QueryRow(ctx, lock, args...).Scan(&raw); err != nil {
		return classify(err, ErrUnavailable)
	}

	// The row lock is held from here on; the cycle must not be abandoned half way.
	wctx := context.WithoutCancel(ctx)

	current, err := p.decode(raw)
	if err != nil {
		return err
	}
	next, err := fn(current)
	if err != nil {
		return err
	}
	if next == nil {
		next = []T{}
	}
	encoded, err := json.Marshal(next)
	if err != nil {
		return ErrWriteFailed.WithCause(fmt.Errorf("failed to encode %s: %w", p.name, err))
	}

	update, args, err := psql.Update(CollectionsTable).
		Set("records", squirrel.Expr("?::jsonb", string(encoded))).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"name": p.name}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update collection query failed: %w", err)
	}
	if _, err := tx.Exec(wctx, update, args...); err != nil {
		return classify(err, ErrWriteFailed)
	}
	if err := tx.Commit(wctx); err != nil {
		return classify(err, ErrWriteFailed)
	}
	return nil
}

func (p *PostgresCollection[T]) decode(raw []byte) ([]T, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var records []T
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, ErrUnavailable.WithCause(fmt.Errorf("failed to decode %s: %w", p.name, err))
	}
	return records, nil
}

// classify maps driver errors onto the store taxonomy.
// Context errors pass through untouched so callers can tell a deadline from an outage.
func classify(err error, fallback *apperror.AppError) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgerrcode.IsConnectionException(pgErr.Code) ||
			pgerrcode.IsInsufficientResources(pgErr.Code) ||
			pgerrcode.IsOperatorIntervention(pgErr.Code) {
			return ErrUnavailable.WithCause(err)
		}
	}
	return fallback.WithCause(err)
}
