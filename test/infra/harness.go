package infra

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"homelinka/migrations"
)

// ApplicationName tags every harness connection so chaos only kills our own
// backends.
const ApplicationName = "homelinka-stress"

// Harness owns the pgx pool and, on a shared database, a private schema.
type Harness struct {
	pool   *pgxpool.Pool
	dsn    string
	schema string
}

// Open connects to dsn and applies the embedded migrations. When isolate is
// true the schema lives in a per-run search_path that Close drops.
func Open(ctx context.Context, dsn string, isolate bool) (*Harness, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pgx config: %w", err)
	}
	cfg.MaxConns = 64
	cfg.MaxConnIdleTime = 30 * time.Second
	cfg.MaxConnLifetime = 5 * time.Minute
	cfg.ConnConfig.RuntimeParams["application_name"] = ApplicationName

	h := &Harness{dsn: dsn}
	if isolate {
		h.schema = fmt.Sprintf("stress_run_%d", time.Now().UnixNano())
		ident := pgx.Identifier{h.schema}.Sanitize()

		conn, err := pgx.Connect(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("connect for schema: %w", err)
		}
		_, err = conn.Exec(ctx, "CREATE SCHEMA "+ident)
		conn.Close(ctx)
		if err != nil {
			return nil, fmt.Errorf("create schema %s: %w", h.schema, err)
		}

		setPath := "SET search_path TO " + ident + ", public"
		cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			_, err := conn.Exec(ctx, setPath)
			return err
		}
	}

	h.pool, err = pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		h.Close(ctx)
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := h.applyMigrations(ctx); err != nil {
		h.Close(ctx)
		return nil, err
	}
	return h, nil
}

// Pool exposes the configured pgx pool.
func (h *Harness) Pool() *pgxpool.Pool {
	return h.pool
}

// DSN returns the connection string for direct connections (e.g., chaos).
func (h *Harness) DSN() string {
	return h.dsn
}

// Close releases the pool and drops the private schema, if any.
func (h *Harness) Close(ctx context.Context) error {
	if h.pool != nil {
		h.pool.Close()
	}
	if h.schema == "" {
		return nil
	}
	conn, err := pgx.Connect(ctx, h.dsn)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)
	_, err = conn.Exec(ctx, "DROP SCHEMA IF EXISTS "+pgx.Identifier{h.schema}.Sanitize()+" CASCADE")
	return err
}

func (h *Harness) applyMigrations(ctx context.Context) error {
	conn, err := h.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire conn: %w", err)
	}
	defer conn.Release()

	sql, err := migrations.All()
	if err != nil {
		return err
	}
	if strings.TrimSpace(sql) == "" {
		return fmt.Errorf("no migrations to apply")
	}

	res := conn.Conn().PgConn().Exec(ctx, sql)
	if _, err := res.ReadAll(); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Reset truncates mutable tables to provide a clean slate.
func (h *Harness) Reset(ctx context.Context) error {
	_, err := h.pool.Exec(ctx, "TRUNCATE TABLE leads, moderation_events, listings, users CASCADE")
	if err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	return nil
}
