package planner

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/atlekbai/graph_query/internal/schema"
)

// Field names one output slot of a compiled plan: the vertex or edge tag
// it belongs to and the inner field path projected from it.
type Field struct {
	Tag   string `json:"tag"`
	Field string `json:"field"`
}

// Plan is a fully compiled statement. Index maps result positions to
// logical slots; ByTag is the reverse lookup, keyed by tag then inner
// field. Plans are immutable once built.
type Plan struct {
	SQL   string
	Args  []any
	Index []Field
	ByTag map[string]map[string]int

	sel     sq.SelectBuilder
	tagDefs map[string]*schema.Def
}

// CountSQL wraps the plan in a count query; the projected columns and
// ordering are irrelevant to the row count but keeping the statement whole
// keeps the semantics identical, joins and paging included.
func (p *Plan) CountSQL() (string, []any, error) {
	return sq.Select("count(*)").
		FromSelect(p.sel, "_count").
		PlaceholderFormat(sq.Dollar).
		ToSql()
}

// EntityMapper converts backend driver values into caller-facing values.
// It is the only seam where backend types leak into results.
type EntityMapper interface {
	Map(v any) any
}

// MapperFunc adapts a function to the EntityMapper interface.
type MapperFunc func(v any) any

func (f MapperFunc) Map(v any) any { return f(v) }

// DefaultMapper renders uuid columns as their canonical string form and
// passes everything else through.
var DefaultMapper EntityMapper = MapperFunc(func(v any) any {
	if b, ok := v.([16]byte); ok {
		return uuid.UUID(b).String()
	}
	return v
})

// DecodeRow normalizes one backend row into a value slice in index order.
// A nil row decodes to nil.
func (p *Plan) DecodeRow(row any, m EntityMapper) ([]any, error) {
	vals, err := p.normalize(row)
	if err != nil || vals == nil {
		return nil, err
	}
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = m.Map(v)
	}
	return out, nil
}

// DecodeRecord normalizes one backend row into nested maps keyed by tag
// and public field name.
func (p *Plan) DecodeRecord(row any, m EntityMapper) (map[string]map[string]any, error) {
	vals, err := p.normalize(row)
	if err != nil || vals == nil {
		return nil, err
	}
	out := make(map[string]map[string]any, len(p.ByTag))
	for i, f := range p.Index {
		slot, ok := out[f.Tag]
		if !ok {
			slot = make(map[string]any)
			out[f.Tag] = slot
		}
		slot[p.outerField(f.Tag, f.Field)] = m.Map(vals[i])
	}
	return out, nil
}

// normalize coerces a backend row to a value slice and checks it against
// the index. Bare values are accepted for single-slot plans.
func (p *Plan) normalize(row any) ([]any, error) {
	if row == nil {
		return nil, nil
	}
	vals, ok := row.([]any)
	if !ok {
		vals = []any{row}
	}
	if len(vals) != len(p.Index) {
		return nil, fmt.Errorf("row has %d values, plan projects %d", len(vals), len(p.Index))
	}
	return vals, nil
}

// outerField maps an index key back to its public spelling: the leading
// column segment is renamed through the tag's reserved-name table.
func (p *Plan) outerField(tag, field string) string {
	def := p.tagDefs[tag]
	if def == nil {
		return field
	}
	head, rest, found := strings.Cut(field, ".")
	head = def.InnerToOuter(head)
	if found {
		return head + "." + rest
	}
	return head
}
