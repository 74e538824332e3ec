package planner

import (
	"github.com/atlekbai/graph_query/internal/backend"
)

// ValueRows streams decoded result rows as value slices in index order.
// The caller owns the cursor and must Close it.
type ValueRows struct {
	rows   backend.Rows
	plan   *Plan
	mapper EntityMapper
}

// Plan returns the compiled plan the rows were produced from.
func (r *ValueRows) Plan() *Plan { return r.plan }

func (r *ValueRows) Next() bool { return r.rows.Next() }

func (r *ValueRows) Values() ([]any, error) {
	vals, err := r.rows.Values()
	if err != nil {
		return nil, err
	}
	return r.plan.DecodeRow(vals, r.mapper)
}

func (r *ValueRows) Err() error { return r.rows.Err() }
func (r *ValueRows) Close()     { r.rows.Close() }

// RecordRows streams decoded result rows as nested maps keyed by tag and
// public field name.
type RecordRows struct {
	rows   backend.Rows
	plan   *Plan
	mapper EntityMapper
}

// Plan returns the compiled plan the rows were produced from.
func (r *RecordRows) Plan() *Plan { return r.plan }

func (r *RecordRows) Next() bool { return r.rows.Next() }

func (r *RecordRows) Record() (map[string]map[string]any, error) {
	vals, err := r.rows.Values()
	if err != nil {
		return nil, err
	}
	return r.plan.DecodeRecord(vals, r.mapper)
}

func (r *RecordRows) Err() error { return r.rows.Err() }
func (r *RecordRows) Close()     { r.rows.Close() }
