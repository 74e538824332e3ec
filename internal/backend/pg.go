package backend

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DialectPostgres is the only dialect with EXPLAIN support.
const DialectPostgres = "postgresql"

// PG runs compiled plans against Postgres through a pgx pool.
type PG struct {
	pool *pgxpool.Pool
}

func NewPG(pool *pgxpool.Pool) *PG {
	return &PG{pool: pool}
}

// NewPool connects a pgx pool and verifies the connection.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

func (p *PG) Dialect() string { return DialectPostgres }

func (p *PG) Count(ctx context.Context, sql string, args []any) (int64, error) {
	var n int64
	if err := p.pool.QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count query: %w", err)
	}
	return n, nil
}

// First returns the first result row's values, or (nil, nil) when the
// result set is empty. The cursor is closed before returning on every path.
func (p *PG) First(ctx context.Context, sql string, args []any) ([]any, error) {
	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("first query: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("first query: %w", err)
		}
		return nil, nil
	}
	vals, err := rows.Values()
	if err != nil {
		return nil, fmt.Errorf("first row values: %w", err)
	}
	out := make([]any, len(vals))
	copy(out, vals)
	return out, nil
}

// Query opens a row cursor. batchSize is advisory: pgx streams rows over
// the wire on its own schedule, so the batch boundary belongs to the driver.
func (p *PG) Query(ctx context.Context, sql string, args []any, batchSize int) (Rows, error) {
	_ = batchSize
	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	return rows, nil
}

// Explain runs EXPLAIN over the statement with its literals inlined
// (EXPLAIN ANALYZE executes, so parameters must be bound) and returns the
// plan text.
func (p *PG) Explain(ctx context.Context, sql string, args []any, opts ExplainOptions) (string, error) {
	inlined, err := Inline(sql, args)
	if err != nil {
		return "", fmt.Errorf("inline explain statement: %w", err)
	}

	var flags []string
	if opts.Analyze {
		flags = append(flags, "ANALYZE")
	}
	if opts.Verbose {
		flags = append(flags, "VERBOSE")
	}
	stmt := "EXPLAIN"
	if len(flags) > 0 {
		stmt += " (" + strings.Join(flags, ", ") + ")"
	}
	stmt += " " + inlined

	rows, err := p.pool.Query(ctx, stmt)
	if err != nil {
		return "", fmt.Errorf("explain: %w", err)
	}
	defer rows.Close()

	var lines []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return "", fmt.Errorf("explain scan: %w", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("explain rows: %w", err)
	}
	return strings.Join(lines, "\n"), nil
}
