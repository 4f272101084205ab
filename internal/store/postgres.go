// Package store persists validation runs.
//
// Two implementations of core.RunStore are provided: Postgres keeps every
// run and its findings in a database, Memory keeps the most recent runs in
// process for deployments without one.
package store

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/JonMunkholm/annonces/internal/config"
	"github.com/JonMunkholm/annonces/internal/core"
	"github.com/JonMunkholm/annonces/internal/schema"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaStatements create the run tables. Normalized rows are not stored:
// a run's findings carry the raw values they refer to.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS validation_runs (
		id          UUID PRIMARY KEY,
		schema_key  TEXT NOT NULL,
		file_name   TEXT NOT NULL,
		encoding    TEXT NOT NULL,
		client_ip   INET,
		user_agent  TEXT NOT NULL DEFAULT '',
		lines       INTEGER NOT NULL,
		errors      INTEGER NOT NULL,
		warnings    INTEGER NOT NULL,
		status      TEXT NOT NULL,
		regime      TEXT NOT NULL,
		expected    INTEGER NOT NULL,
		observed    INTEGER NOT NULL,
		duplicates  INTEGER NOT NULL DEFAULT 0,
		duration_ms BIGINT NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL
	)`,
	`ALTER TABLE validation_runs ADD COLUMN IF NOT EXISTS user_agent TEXT NOT NULL DEFAULT ''`,
	`ALTER TABLE validation_runs ADD COLUMN IF NOT EXISTS duplicates INTEGER NOT NULL DEFAULT 0`,
	`CREATE INDEX IF NOT EXISTS validation_runs_created_at_idx ON validation_runs (created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS validation_findings (
		run_id       UUID NOT NULL REFERENCES validation_runs (id) ON DELETE CASCADE,
		seq          INTEGER NOT NULL,
		line         INTEGER NOT NULL,
		business_key TEXT NOT NULL,
		rank         INTEGER NOT NULL,
		field_name   TEXT NOT NULL,
		code         TEXT NOT NULL,
		severity     TEXT NOT NULL,
		message      TEXT NOT NULL,
		raw_value    TEXT NOT NULL,
		PRIMARY KEY (run_id, seq)
	)`,
}

const runColumns = `id, schema_key, file_name, encoding, client_ip, user_agent, lines, errors, warnings,
	status, regime, expected, observed, duplicates, duration_ms, created_at`

var findingColumns = []string{
	"run_id", "seq", "line", "business_key", "rank", "field_name",
	"code", "severity", "message", "raw_value",
}

// Connect opens and verifies a connection pool.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// Postgres stores runs in PostgreSQL.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a store on pool. Call EnsureSchema before first use.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// EnsureSchema creates the run tables if they do not exist.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// Ping verifies the database is reachable.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// SaveRun inserts the run and bulk-copies its findings in one transaction.
func (p *Postgres) SaveRun(ctx context.Context, run *core.Run) error {
	id, ok := toPgUUID(run.ID)
	if !ok {
		return fmt.Errorf("save run: invalid run id %q", run.ID)
	}

	var (
		shape      core.Shape
		duplicates int
		findings   []core.Finding
	)
	if run.Report != nil {
		shape = run.Report.Shape
		duplicates = run.Report.DuplicateKeys
		findings = run.Report.Findings
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // no-op after commit

	_, err = tx.Exec(ctx,
		`INSERT INTO validation_runs (`+runColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		id, run.SchemaKey, run.FileName, run.Encoding, toInet(run.ClientIP), run.UserAgent,
		int32(run.Lines), int32(run.Errors), int32(run.Warnings),
		string(run.Status), string(shape.Regime), int32(shape.Expected), int32(shape.Observed),
		int32(duplicates), run.Duration.Milliseconds(),
		pgtype.Timestamptz{Time: run.CreatedAt, Valid: true},
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	if len(findings) > 0 {
		rows := make([][]any, len(findings))
		for i, f := range findings {
			rows[i] = []any{
				id, int32(i), int32(f.LineNumber), f.BusinessKey, int32(f.Rank), f.FieldName,
				f.Code, string(f.Severity), f.Message, f.RawValue,
			}
		}
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{"validation_findings"}, findingColumns, pgx.CopyFromRows(rows)); err != nil {
			return fmt.Errorf("copy findings: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

// GetRun loads a run and rebuilds its report from the stored findings.
func (p *Postgres) GetRun(ctx context.Context, id string) (*core.Run, error) {
	pgID, ok := toPgUUID(id)
	if !ok {
		return nil, core.ErrRunNotFound
	}

	run, report, err := scanRun(p.pool.QueryRow(ctx,
		`SELECT `+runColumns+` FROM validation_runs WHERE id = $1`, pgID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}

	rows, err := p.pool.Query(ctx,
		`SELECT line, business_key, rank, field_name, code, severity, message, raw_value
		 FROM validation_findings WHERE run_id = $1 ORDER BY seq`, pgID)
	if err != nil {
		return nil, fmt.Errorf("query findings: %w", err)
	}
	findings, err := pgx.CollectRows(rows, scanFinding)
	if err != nil {
		return nil, fmt.Errorf("scan findings: %w", err)
	}

	report.Findings = findings
	if reg, ok := schema.Get(run.SchemaKey); ok {
		report.Columns = reg.Columns()
	}
	run.Report = report
	return run, nil
}

// ListRuns returns the most recent runs first, without reports.
func (p *Postgres) ListRuns(ctx context.Context, limit int) ([]*core.Run, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT `+runColumns+` FROM validation_runs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*core.Run, error) {
		run, _, err := scanRun(row)
		return run, err
	})
}

// scanRun scans one validation_runs row selected with runColumns. The
// returned report holds the run's summary but no findings.
func scanRun(row pgx.Row) (*core.Run, *core.Report, error) {
	var (
		id         pgtype.UUID
		run        core.Run
		clientIP   *netip.Addr
		lines      int32
		errs       int32
		warnings   int32
		status     string
		regime     string
		expected   int32
		observed   int32
		duplicates int32
		durationMs int64
		createdAt  pgtype.Timestamptz
	)

	err := row.Scan(
		&id, &run.SchemaKey, &run.FileName, &run.Encoding, &clientIP, &run.UserAgent,
		&lines, &errs, &warnings, &status, &regime, &expected, &observed,
		&duplicates, &durationMs, &createdAt,
	)
	if err != nil {
		return nil, nil, err
	}

	run.ID = uuidToString(id)
	if clientIP != nil {
		run.ClientIP = clientIP.String()
	}
	run.Lines = int(lines)
	run.Errors = int(errs)
	run.Warnings = int(warnings)
	run.Status = core.RunStatus(status)
	run.Duration = time.Duration(durationMs) * time.Millisecond
	run.CreatedAt = createdAt.Time

	report := &core.Report{
		SchemaKey:     run.SchemaKey,
		Encoding:      run.Encoding,
		Findings:      []core.Finding{},
		Lines:         run.Lines,
		Shape:         core.Shape{Regime: core.Regime(regime), Expected: int(expected), Observed: int(observed)},
		DuplicateKeys: int(duplicates),
	}
	return &run, report, nil
}

func scanFinding(row pgx.CollectableRow) (core.Finding, error) {
	var (
		f        core.Finding
		line     int32
		rank     int32
		severity string
	)
	err := row.Scan(&line, &f.BusinessKey, &rank, &f.FieldName, &f.Code, &severity, &f.Message, &f.RawValue)
	f.LineNumber = int(line)
	f.Rank = int(rank)
	f.Severity = core.Severity(severity)
	return f, err
}

func toPgUUID(s string) (pgtype.UUID, bool) {
	parsed, err := uuid.Parse(s)
	if err != nil {
		return pgtype.UUID{Valid: false}, false
	}
	return pgtype.UUID{Bytes: parsed, Valid: true}, true
}

func uuidToString(u pgtype.UUID) string {
	if !u.Valid {
		return ""
	}
	return uuid.UUID(u.Bytes).String()
}

// toInet returns nil for values that are not IP addresses so the column
// stores NULL.
func toInet(s string) *netip.Addr {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return nil
	}
	return &addr
}
