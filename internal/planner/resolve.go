package planner

import (
	"fmt"
	"strings"

	"github.com/atlekbai/graph_query/internal/schema"
)

// fieldRef is the split form of a dotted field path bound to an alias: the
// inner column name plus the remaining attribute path. jsonb is set when
// resolution must go through the semi-structured branch, either because the
// path descends into the column or because the column itself holds JSONB.
type fieldRef struct {
	alias  *schema.Alias
	column string
	path   []string
	jsonb  bool
}

// splitField validates a field path against the alias. The first segment is
// remapped from its public name to the storage column; reserved inner names
// are rejected with a hint.
func splitField(alias *schema.Alias, field string) (fieldRef, error) {
	segs := strings.Split(field, ".")
	inner, err := alias.Def.OuterToInner(segs[0])
	if err != nil {
		return fieldRef{}, err
	}
	if !alias.Def.HasColumn(inner) {
		_, err := alias.Column(inner)
		return fieldRef{}, err
	}
	return fieldRef{
		alias:  alias,
		column: inner,
		path:   segs[1:],
		jsonb:  len(segs) > 1 || alias.Def.IsJSONB(inner),
	}, nil
}

// key is the inner field path the projection index records; the decoder
// remaps the first segment back to its public name.
func (f fieldRef) key() string {
	if len(f.path) == 0 {
		return f.column
	}
	return f.column + "." + strings.Join(f.path, ".")
}

func (f fieldRef) columnSQL() string {
	return f.alias.Name + "." + schema.QuoteIdent(f.column)
}

// jsonbSQL addresses the attribute path as JSONB: col #> '{a,b}'.
func (f fieldRef) jsonbSQL() string {
	if len(f.path) == 0 {
		return f.columnSQL()
	}
	return f.columnSQL() + " #> " + jsonbPathLiteral(f.path)
}

// textSQL addresses the attribute path as text: col #>> '{a,b}'.
func (f fieldRef) textSQL() string {
	if len(f.path) == 0 {
		return f.columnSQL() + " #>> '{}'"
	}
	return f.columnSQL() + " #>> " + jsonbPathLiteral(f.path)
}

// jsonbPathLiteral renders a Postgres text-array literal for the #> family,
// quoting every segment.
func jsonbPathLiteral(path []string) string {
	parts := make([]string, len(path))
	for i, seg := range path {
		seg = strings.ReplaceAll(seg, `\`, `\\`)
		seg = strings.ReplaceAll(seg, `"`, `\"`)
		parts[i] = `"` + seg + `"`
	}
	lit := "{" + strings.Join(parts, ",") + "}"
	return "'" + strings.ReplaceAll(lit, "'", "''") + "'"
}

// resolveProjectable resolves a field path for projection or ordering.
// Plain columns resolve directly and ignore the cast; semi-structured paths
// require a cast key because the output type would otherwise be ambiguous.
func resolveProjectable(alias *schema.Alias, field, cast string) (string, fieldRef, error) {
	ref, err := splitField(alias, field)
	if err != nil {
		return "", fieldRef{}, err
	}
	if !ref.jsonb {
		return ref.columnSQL(), ref, nil
	}
	if len(ref.path) > 0 && cast == "" {
		return "", fieldRef{}, fmt.Errorf("%w: %q resolves to a nested attribute, specify a cast key", ErrAmbiguousCast, field)
	}
	expr, err := castJSONB(ref, cast)
	if err != nil {
		return "", fieldRef{}, err
	}
	return expr, ref, nil
}

// castJSONB applies a cast key to a semi-structured reference.
func castJSONB(ref fieldRef, cast string) (string, error) {
	switch cast {
	case "", "j":
		return ref.jsonbSQL(), nil
	case "f":
		return "(" + ref.textSQL() + ")::numeric", nil
	case "i":
		return "(" + ref.textSQL() + ")::bigint", nil
	case "b":
		return "(" + ref.textSQL() + ")::boolean", nil
	case "t":
		return ref.textSQL(), nil
	case "d":
		return "(" + ref.textSQL() + ")::timestamptz", nil
	default:
		return "", fmt.Errorf("%w %q", ErrUnknownCast, cast)
	}
}
