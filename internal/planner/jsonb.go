package planner

import (
	"encoding/json"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/atlekbai/graph_query/internal/qspec"
)

// jsonbLeaf compiles a leaf predicate against a semi-structured attribute.
// The stored value's type is unknown until evaluation, so every comparison
// is guarded by a runtime type check: when the stored type tag differs from
// the filter value's inferred tag the predicate is false, never an error.
func jsonbLeaf(ref fieldRef, op string, val qspec.Value) (sq.Sqlizer, error) {
	j := ref.jsonbSQL()

	switch op {
	case "==", ">", "<", ">=", "=>", "<=", "=<", "like", "ilike":
		return typedComparison(ref, op, val), nil

	case "in":
		list := val.(qspec.List) // shape checked by leafExpr
		target, asJSON := typedTarget(ref, list[0].Tag())
		ph := make([]string, len(list))
		args := make([]any, len(list))
		for i, el := range list {
			if asJSON {
				ph[i] = "?::jsonb"
				args[i] = jsonText(el)
			} else {
				ph[i] = "?"
				args[i] = el.Native()
			}
		}
		inner := target + " IN (" + strings.Join(ph, ", ") + ")"
		return typeGuard(j, list[0].Tag(), inner, args), nil

	case "of_type":
		name, ok := val.(qspec.Text)
		if !ok || !validTypeTag(string(name)) {
			return nil, fmt.Errorf("%w: value %v for of_type is not among object, array, string, number, boolean, null", ErrBadValue, val.Native())
		}
		return sq.Expr("jsonb_typeof("+j+") = ?", string(name)), nil

	case "contains":
		return sq.Expr(j+" @> ?::jsonb", jsonText(val)), nil

	case "has_key":
		key, ok := val.(qspec.Text)
		if !ok {
			return nil, fmt.Errorf("%w: operator has_key needs a text key, got %s", ErrBadValue, val.Tag())
		}
		return sq.Expr("jsonb_exists("+j+", ?)", string(key)), nil

	case "of_length":
		return typeGuard(j, qspec.TagArray, "jsonb_array_length("+j+") = ?", []any{val.Native()}), nil
	case "longer":
		return typeGuard(j, qspec.TagArray, "jsonb_array_length("+j+") > ?", []any{val.Native()}), nil
	case "shorter":
		return typeGuard(j, qspec.TagArray, "jsonb_array_length("+j+") < ?", []any{val.Native()}), nil

	default:
		return nil, fmt.Errorf("%w %q for filters in JSONB field", ErrUnknownOperator, op)
	}
}

// typedComparison builds a comparison that only fires when the stored type
// tag matches the filter value's inferred tag.
func typedComparison(ref fieldRef, op string, val qspec.Value) sq.Sqlizer {
	j := ref.jsonbSQL()
	tag := val.Tag()
	target, asJSON := typedTarget(ref, tag)

	inner := target + " " + sqlComparison(op) + " ?"
	var arg any
	if asJSON {
		inner += "::jsonb"
		arg = jsonText(val)
	} else {
		arg = val.Native()
	}
	return typeGuard(j, tag, inner, []any{arg})
}

// typedTarget returns the comparison target for a value tag: numbers and
// booleans compare through a text cast, strings compare as text, and the
// structural tags compare as JSONB documents (asJSON true).
func typedTarget(ref fieldRef, tag qspec.TypeTag) (target string, asJSON bool) {
	switch tag {
	case qspec.TagBoolean:
		return "(" + ref.textSQL() + ")::boolean", false
	case qspec.TagNumber:
		return "(" + ref.textSQL() + ")::numeric", false
	case qspec.TagString:
		return ref.textSQL(), false
	default: // array, object, null
		return ref.jsonbSQL(), true
	}
}

// typeGuard wraps a comparison in the runtime type check. The tag literal
// is inlined: the tag set is closed.
func typeGuard(j string, tag qspec.TypeTag, inner string, args []any) sq.Sqlizer {
	return sq.Expr("CASE WHEN jsonb_typeof("+j+") = '"+string(tag)+"' THEN "+inner+" ELSE false END", args...)
}

func sqlComparison(op string) string {
	switch op {
	case "==":
		return "="
	case "=>":
		return ">="
	case "=<":
		return "<="
	case "like":
		return "LIKE"
	case "ilike":
		return "ILIKE"
	default:
		return op
	}
}

func validTypeTag(s string) bool {
	switch qspec.TypeTag(s) {
	case qspec.TagObject, qspec.TagArray, qspec.TagString, qspec.TagNumber, qspec.TagBoolean, qspec.TagNull:
		return true
	}
	return false
}

// jsonText encodes a value as deterministic JSON text for ::jsonb casts;
// encoding/json sorts map keys.
func jsonText(v qspec.Value) string {
	b, err := json.Marshal(v.Native())
	if err != nil {
		// Native values are built from JSON-compatible variants only.
		panic(fmt.Sprintf("unencodable filter value: %v", err))
	}
	return string(b)
}
