// Package postgres keeps a history of check reports in a Postgres table.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/webmonitor/internal/monitor"
)

const defaultTable = "reports"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for report rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// Reporter inserts one row per report.
type Reporter struct {
	pool  execCloser
	table string
}

// New connects a pool and makes sure the report table exists.
func New(ctx context.Context, cfg Config) (*Reporter, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	r := &Reporter{pool: pool, table: table}
	if err := r.EnsureTable(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return r, nil
}

// NewWithPool constructs a reporter from an existing pool (primarily for testing).
func NewWithPool(pool execCloser, table string) (*Reporter, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &Reporter{pool: pool, table: name}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		return defaultTable, nil
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// EnsureTable creates the report table when it does not exist yet.
func (r *Reporter) EnsureTable(ctx context.Context) error {
	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id           TEXT PRIMARY KEY,
	cycle_id     TEXT NOT NULL,
	url          TEXT NOT NULL,
	kind         TEXT NOT NULL,
	analysis     TEXT NOT NULL DEFAULT '',
	error_text   TEXT NOT NULL DEFAULT '',
	artifact_uri TEXT NOT NULL DEFAULT '',
	checked_at   TIMESTAMPTZ NOT NULL,
	duration_ms  BIGINT NOT NULL
)`, r.table)
	if _, err := r.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create table %s: %w", r.table, err)
	}
	return nil
}

// Report inserts the report as a row.
func (r *Reporter) Report(ctx context.Context, report monitor.Report) error {
	if report.ID == "" {
		return fmt.Errorf("report id is required")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	cycle_id,
	url,
	kind,
	analysis,
	error_text,
	artifact_uri,
	checked_at,
	duration_ms
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9
)`, r.table)

	args := []any{
		report.ID,
		report.CycleID,
		report.URL,
		string(report.Kind),
		report.Analysis,
		report.ErrorText,
		report.ArtifactURI,
		report.CheckedAt,
		report.Duration.Milliseconds(),
	}
	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert report %s: %w", report.ID, err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (r *Reporter) Close() {
	if r == nil || r.pool == nil {
		return
	}
	r.pool.Close()
}

// Name identifies the sink in logs and metrics.
func (r *Reporter) Name() string { return "postgres" }
