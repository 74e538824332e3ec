package planner

import (
	"context"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"

	"github.com/atlekbai/graph_query/internal/backend"
	"github.com/atlekbai/graph_query/internal/qspec"
	"github.com/atlekbai/graph_query/internal/schema"
)

// Builder compiles query specifications and runs them through its backend
// runner. A builder is single-writer: Plan and the operations that call it
// must not be invoked concurrently. Use one builder per goroutine; they are
// cheap, the expensive state is the pool inside the runner.
type Builder struct {
	reg    *schema.Registry
	runner backend.Runner
	log    *slog.Logger
	mapper EntityMapper
	slot   planSlot
}

type Option func(*Builder)

func WithLogger(log *slog.Logger) Option {
	return func(b *Builder) { b.log = log }
}

// WithMapper replaces the backend-value mapper applied during decoding.
func WithMapper(m EntityMapper) Option {
	return func(b *Builder) { b.mapper = m }
}

func New(reg *schema.Registry, runner backend.Runner, opts ...Option) *Builder {
	b := &Builder{
		reg:    reg,
		runner: runner,
		log:    slog.Default(),
		mapper: DefaultMapper,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Plan returns the compiled plan for the spec. An unchanged spec returns
// the identical resident plan; any change rebuilds it. The spec is
// normalized in place so defaulted edge tags are visible to the caller.
func (b *Builder) Plan(q *qspec.Query) (*Plan, error) {
	q.Normalize()
	if err := q.Validate(b.reg); err != nil {
		return nil, err
	}
	fp := qspec.Fingerprint(q)
	if p, ok := b.slot.get(fp); ok {
		b.log.Debug("plan cache hit", "fingerprint", fp[:12])
		return p, nil
	}
	b.slot.reset()
	p, err := b.compile(q)
	if err != nil {
		return nil, err
	}
	b.slot.put(fp, p)
	b.log.Debug("plan compiled", "fingerprint", fp[:12], "columns", len(p.Index))
	return p, nil
}

func (b *Builder) compile(q *qspec.Query) (*Plan, error) {
	aliases := make(map[string]*schema.Alias, 2*len(q.Path))

	first := &q.Path[0]
	d0, err := b.reg.Def(first.Kind)
	if err != nil {
		return nil, err
	}
	v0 := &schema.Alias{Def: d0, Name: "v0"}
	aliases[first.Tag] = v0
	sb := sq.Select().From(d0.TableName() + " v0").PlaceholderFormat(sq.Dollar)

	for i := 1; i < len(q.Path); i++ {
		v := &q.Path[i]
		d, err := b.reg.Def(v.Kind)
		if err != nil {
			return nil, err
		}
		next := &schema.Alias{Def: d, Name: fmt.Sprintf("v%d", i)}
		joinTo, err := b.tagAlias(aliases, v.JoinTo)
		if err != nil {
			return nil, err
		}
		sb, aliases[v.EdgeTag], err = buildJoin(
			sb, b.reg, joinTo, next, v.Rel, fmt.Sprintf("e%d", i),
			v.Outer, q.Filters[v.JoinTo], needsPath(q, v.EdgeTag))
		if err != nil {
			return nil, err
		}
		aliases[v.Tag] = next
	}

	for _, tag := range sortedKeys(q.Filters) {
		spec := q.Filters[tag]
		if len(spec) == 0 {
			continue
		}
		alias, err := b.tagAlias(aliases, tag)
		if err != nil {
			return nil, err
		}
		pred, err := compileFilters(alias, spec)
		if err != nil {
			return nil, fmt.Errorf("filters for %q: %w", tag, err)
		}
		sb = sb.Where(pred)
	}

	proj := newProjector(sb)
	if !hasProjections(q) {
		last := &q.Path[len(q.Path)-1]
		err = proj.buildTag(last.Tag, aliases[last.Tag], []qspec.Projection{{Field: "*"}})
		if err != nil {
			return nil, err
		}
	} else {
		for i := range q.Path {
			tag := q.Path[i].Tag
			if err := proj.buildTag(tag, aliases[tag], q.Project[tag]); err != nil {
				return nil, err
			}
		}
		for _, tag := range q.EdgeTags() {
			if len(q.Project[tag]) == 0 {
				continue
			}
			alias, err := b.tagAlias(aliases, tag)
			if err != nil {
				return nil, err
			}
			if err := proj.buildTag(tag, alias, q.Project[tag]); err != nil {
				return nil, err
			}
		}
	}
	sb = proj.sb

	sb, err = buildOrderBy(sb, q.OrderBy, func(tag string) (*schema.Alias, error) {
		return b.tagAlias(aliases, tag)
	})
	if err != nil {
		return nil, err
	}

	if q.Limit != nil {
		sb = sb.Limit(uint64(*q.Limit))
	}
	if q.Offset != nil {
		sb = sb.Offset(uint64(*q.Offset))
	}
	if q.Distinct {
		sb = sb.Distinct()
	}

	sqlStr, args, err := sb.ToSql()
	if err != nil {
		return nil, err
	}

	defs := make(map[string]*schema.Def, len(aliases))
	for tag, a := range aliases {
		if a != nil {
			defs[tag] = a.Def
		}
	}
	return &Plan{
		SQL:     sqlStr,
		Args:    args,
		Index:   proj.index,
		ByTag:   proj.byTag,
		sel:     sb,
		tagDefs: defs,
	}, nil
}

// tagAlias resolves a tag to its bound alias. Tags of direct and reverse
// joins are registered without a relation row to address.
func (b *Builder) tagAlias(aliases map[string]*schema.Alias, tag string) (*schema.Alias, error) {
	a, ok := aliases[tag]
	if !ok {
		return nil, fmt.Errorf("%w %q", qspec.ErrUnknownTag, tag)
	}
	if a == nil {
		return nil, fmt.Errorf("%w: tag %q", ErrNoEdge, tag)
	}
	return a, nil
}

// needsPath reports whether the edge tag's filters or projections address
// the traversal path, which is only materialized on demand.
func needsPath(q *qspec.Query, edgeTag string) bool {
	if _, ok := q.Filters[edgeTag]["path"]; ok {
		return true
	}
	for _, it := range q.Project[edgeTag] {
		if it.Field == "path" {
			return true
		}
	}
	return false
}

func hasProjections(q *qspec.Query) bool {
	for _, items := range q.Project {
		if len(items) > 0 {
			return true
		}
	}
	return false
}

// Count returns the number of rows the spec matches.
func (b *Builder) Count(ctx context.Context, q *qspec.Query) (int64, error) {
	p, err := b.Plan(q)
	if err != nil {
		return 0, err
	}
	csql, cargs, err := p.CountSQL()
	if err != nil {
		return 0, err
	}
	return b.runner.Count(ctx, csql, cargs)
}

// First returns the first result row in index order, or nil when nothing
// matches.
func (b *Builder) First(ctx context.Context, q *qspec.Query) ([]any, error) {
	p, err := b.Plan(q)
	if err != nil {
		return nil, err
	}
	row, err := b.runner.First(ctx, p.SQL, p.Args)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}
	return p.DecodeRow(row, b.mapper)
}

// IterAll streams result rows as value slices in index order.
func (b *Builder) IterAll(ctx context.Context, q *qspec.Query, batchSize int) (*ValueRows, error) {
	p, err := b.Plan(q)
	if err != nil {
		return nil, err
	}
	rows, err := b.runner.Query(ctx, p.SQL, p.Args, batchSize)
	if err != nil {
		return nil, err
	}
	return &ValueRows{rows: rows, plan: p, mapper: b.mapper}, nil
}

// IterDict streams result rows as nested maps keyed by tag and field.
func (b *Builder) IterDict(ctx context.Context, q *qspec.Query, batchSize int) (*RecordRows, error) {
	p, err := b.Plan(q)
	if err != nil {
		return nil, err
	}
	rows, err := b.runner.Query(ctx, p.SQL, p.Args, batchSize)
	if err != nil {
		return nil, err
	}
	return &RecordRows{rows: rows, plan: p, mapper: b.mapper}, nil
}

// AsSQL renders the compiled statement, parameterized or with literals
// inlined.
func (b *Builder) AsSQL(q *qspec.Query, inline bool) (string, error) {
	p, err := b.Plan(q)
	if err != nil {
		return "", err
	}
	s, err := backend.RenderSQL(p.SQL, p.Args, inline)
	if err != nil {
		return "", err
	}
	return s + "\n", nil
}

// Analyze returns the backend's execution plan report. Only defined for
// the postgresql dialect.
func (b *Builder) Analyze(ctx context.Context, q *qspec.Query, opts backend.ExplainOptions) (string, error) {
	if d := b.runner.Dialect(); d != backend.DialectPostgres {
		return "", fmt.Errorf("%w %q: analyze needs %q", ErrUnsupportedDialect, d, backend.DialectPostgres)
	}
	p, err := b.Plan(q)
	if err != nil {
		return "", err
	}
	return b.runner.Explain(ctx, p.SQL, p.Args, opts)
}
