package planner

import (
	"fmt"
	"sort"

	sq "github.com/Masterminds/squirrel"

	"github.com/atlekbai/graph_query/internal/qspec"
	"github.com/atlekbai/graph_query/internal/schema"
)

// compileFilters translates one tag's filter specification into a predicate
// tree. Every top-level key contributes one expression; they are ANDed
// together. Keys are visited in sorted order so the compiled SQL is
// deterministic.
func compileFilters(alias *schema.Alias, spec qspec.Map) (sq.Sqlizer, error) {
	var exprs []sq.Sqlizer
	for _, key := range spec.SortedKeys() {
		val := spec[key]
		switch key {
		case "and", "or", "~and", "!and", "~or", "!or":
			expr, err := compileCombinator(alias, key, val)
			if err != nil {
				return nil, err
			}
			exprs = append(exprs, expr)
		default:
			ref, err := splitField(alias, key)
			if err != nil {
				return nil, err
			}
			opMap, ok := val.(qspec.Map)
			if !ok {
				// A bare literal is an implicit equality.
				opMap = qspec.Map{"==": val}
			}
			for _, op := range opMap.SortedKeys() {
				expr, err := leafExpr(ref, op, opMap[op])
				if err != nil {
					return nil, fmt.Errorf("filter %q: %w", key, err)
				}
				exprs = append(exprs, expr)
			}
		}
	}
	return conjoin(exprs), nil
}

func compileCombinator(alias *schema.Alias, key string, val qspec.Value) (sq.Sqlizer, error) {
	children, ok := val.(qspec.List)
	if !ok {
		return nil, fmt.Errorf("%w: combinator %q expects a list of filter specifications, got %s", ErrBadValue, key, val.Tag())
	}
	subs := make([]sq.Sqlizer, len(children))
	for i, child := range children {
		childSpec, ok := child.(qspec.Map)
		if !ok {
			return nil, fmt.Errorf("%w: combinator %q element %d is not a filter specification", ErrBadValue, key, i)
		}
		sub, err := compileFilters(alias, childSpec)
		if err != nil {
			return nil, err
		}
		subs[i] = sub
	}

	negate := key[0] == '~' || key[0] == '!'
	var expr sq.Sqlizer
	if key == "and" || key == "~and" || key == "!and" {
		expr = conjoin(subs)
	} else {
		expr = disjoin(subs)
	}
	if negate {
		return notExpr(expr)
	}
	return expr, nil
}

// leafExpr compiles one (operator, value) pair against a resolved field.
// A ~ or ! prefix negates the compiled operator. The leaf operators and/or
// recurse over a list of operator maps sharing this field path; this is the
// narrower recursion distinct from the spec-level combinators.
func leafExpr(ref fieldRef, op string, val qspec.Value) (sq.Sqlizer, error) {
	negate := false
	if len(op) > 0 && (op[0] == '~' || op[0] == '!') {
		negate = true
		op = op[1:]
	}

	switch op {
	case "of_length", "longer", "shorter":
		if _, ok := val.(qspec.Int); !ok {
			return nil, fmt.Errorf("%w: operator %q needs an integer length, got %s", ErrBadValue, op, val.Tag())
		}
	case "like", "ilike":
		if _, ok := val.(qspec.Text); !ok {
			return nil, fmt.Errorf("%w: operator %q needs a text pattern, got %s", ErrBadValue, op, val.Tag())
		}
	case "in":
		list, ok := val.(qspec.List)
		if !ok {
			return nil, fmt.Errorf("%w: operator in needs a list, got %s", ErrBadValue, val.Tag())
		}
		if len(list) == 0 {
			return nil, ErrEmptyIn
		}
		for _, el := range list {
			if el.Tag() != list[0].Tag() {
				return nil, fmt.Errorf("%w: %s and %s", ErrHeterogeneousIn, list[0].Tag(), el.Tag())
			}
		}
	case "and", "or":
		expr, err := leafBoolean(ref, op, val)
		if err != nil {
			return nil, err
		}
		if negate {
			return notExpr(expr)
		}
		return expr, nil
	}

	var expr sq.Sqlizer
	var err error
	if ref.jsonb {
		expr, err = jsonbLeaf(ref, op, val)
	} else {
		expr, err = scalarLeaf(ref, op, val)
	}
	if err != nil {
		return nil, err
	}
	if negate {
		return notExpr(expr)
	}
	return expr, nil
}

// leafBoolean handles and/or used as leaf operators: the value is a list of
// operator maps, each compiled against the same field.
func leafBoolean(ref fieldRef, op string, val qspec.Value) (sq.Sqlizer, error) {
	list, ok := val.(qspec.List)
	if !ok {
		return nil, fmt.Errorf("%w: leaf operator %q expects a list of operator maps, got %s", ErrBadValue, op, val.Tag())
	}
	var exprs []sq.Sqlizer
	for i, el := range list {
		opMap, ok := el.(qspec.Map)
		if !ok {
			return nil, fmt.Errorf("%w: leaf operator %q element %d is not an operator map", ErrBadValue, op, i)
		}
		for _, subOp := range opMap.SortedKeys() {
			expr, err := leafExpr(ref, subOp, opMap[subOp])
			if err != nil {
				return nil, err
			}
			exprs = append(exprs, expr)
		}
	}
	if op == "and" {
		return conjoin(exprs), nil
	}
	return disjoin(exprs), nil
}

// scalarLeaf compiles a leaf predicate against a plain column.
func scalarLeaf(ref fieldRef, op string, val qspec.Value) (sq.Sqlizer, error) {
	col := ref.columnSQL()
	switch op {
	case "==":
		switch val.(type) {
		case qspec.Null:
			return sq.Eq{col: nil}, nil
		case qspec.List:
			// Array equality, not membership.
			return sq.Expr(col+" = ?", val.Native()), nil
		default:
			return sq.Eq{col: val.Native()}, nil
		}
	case ">", "<", ">=", "<=":
		return sq.Expr(col+" "+op+" ?", val.Native()), nil
	case "like":
		return sq.Expr(col+"::text LIKE ?", val.Native()), nil
	case "ilike":
		return sq.Expr(col+"::text ILIKE ?", val.Native()), nil
	case "in":
		return sq.Eq{col: val.Native()}, nil
	default:
		return nil, fmt.Errorf("%w %q for filters on columns", ErrUnknownOperator, op)
	}
}

// conjoin folds expressions with AND. Zero expressions is the identity.
func conjoin(exprs []sq.Sqlizer) sq.Sqlizer {
	switch len(exprs) {
	case 0:
		return sq.Expr("true")
	case 1:
		return exprs[0]
	default:
		return sq.And(exprs)
	}
}

// disjoin folds expressions with OR. Zero expressions is the identity.
func disjoin(exprs []sq.Sqlizer) sq.Sqlizer {
	switch len(exprs) {
	case 0:
		return sq.Expr("false")
	case 1:
		return exprs[0]
	default:
		return sq.Or(exprs)
	}
}

func notExpr(inner sq.Sqlizer) (sq.Sqlizer, error) {
	sql, args, err := inner.ToSql()
	if err != nil {
		return nil, err
	}
	return sq.Expr("NOT ("+sql+")", args...), nil
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
