// Package backend executes compiled plans. The planner depends only on the
// Runner interface; everything Postgres-specific lives behind it.
package backend

import "context"

// Rows is a forward-only cursor over positional result rows. pgx.Rows
// satisfies it directly; tests substitute an in-memory implementation.
type Rows interface {
	Next() bool
	Values() ([]any, error)
	Err() error
	Close()
}

// ExplainOptions selects the EXPLAIN variant for Runner.Explain.
type ExplainOptions struct {
	Analyze bool
	Verbose bool
}

// Runner is the execution collaborator: count, first-row fetch, batched row
// cursor, and plan analysis, plus dialect identification used to gate
// dialect-only diagnostics.
type Runner interface {
	Dialect() string
	Count(ctx context.Context, sql string, args []any) (int64, error)
	First(ctx context.Context, sql string, args []any) ([]any, error)
	Query(ctx context.Context, sql string, args []any, batchSize int) (Rows, error)
	Explain(ctx context.Context, sql string, args []any, opts ExplainOptions) (string, error)
}
