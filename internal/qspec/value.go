package qspec

import (
	"encoding/json"
	"fmt"
	"sort"
)

// TypeTag is the runtime type classification shared by filter values and
// stored JSONB documents. Comparisons against semi-structured columns only
// fire when both sides carry the same tag.
type TypeTag string

const (
	TagNull    TypeTag = "null"
	TagBoolean TypeTag = "boolean"
	TagNumber  TypeTag = "number"
	TagString  TypeTag = "string"
	TagArray   TypeTag = "array"
	TagObject  TypeTag = "object"
)

// Value is the closed set of literal shapes a specification can carry.
// Filter values, projection arguments and paging numbers are all decoded
// into this variant once, at the edge; the compiler never reflects on raw
// host types.
type Value interface {
	// Tag returns the inferred type tag of the value.
	Tag() TypeTag
	// Native returns the plain Go value used as a statement argument.
	Native() any

	value() // marker method
}

type Null struct{}

type Bool bool

type Int int64

type Float float64

type Text string

// List is an ordered sequence value.
type List []Value

// Map is a mapping value. Iteration must go through SortedKeys so that
// compiled output is deterministic.
type Map map[string]Value

func (Null) Tag() TypeTag  { return TagNull }
func (Bool) Tag() TypeTag  { return TagBoolean }
func (Int) Tag() TypeTag   { return TagNumber }
func (Float) Tag() TypeTag { return TagNumber }
func (Text) Tag() TypeTag  { return TagString }
func (List) Tag() TypeTag  { return TagArray }
func (Map) Tag() TypeTag   { return TagObject }

func (Null) Native() any    { return nil }
func (v Bool) Native() any  { return bool(v) }
func (v Int) Native() any   { return int64(v) }
func (v Float) Native() any { return float64(v) }
func (v Text) Native() any  { return string(v) }

func (v List) Native() any {
	out := make([]any, len(v))
	for i, el := range v {
		out[i] = el.Native()
	}
	return out
}

func (v Map) Native() any {
	out := make(map[string]any, len(v))
	for k, el := range v {
		out[k] = el.Native()
	}
	return out
}

func (Null) value()  {}
func (Bool) value()  {}
func (Int) value()   {}
func (Float) value() {}
func (Text) value()  {}
func (List) value()  {}
func (Map) value()   {}

// SortedKeys returns the map's keys in lexical order.
func (v Map) SortedKeys() []string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// FromNative converts a decoded JSON value (or a plain Go literal supplied
// by a programmatic caller) into the Value variant. json.Number is split
// into Int or Float so integer arguments stay integers on the wire.
func FromNative(v any) (Value, error) {
	switch v := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return v, nil
	case bool:
		return Bool(v), nil
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return Int(i), nil
		}
		f, err := v.Float64()
		if err != nil {
			return nil, fmt.Errorf("bad number literal %q: %w", v.String(), err)
		}
		return Float(f), nil
	case int:
		return Int(v), nil
	case int64:
		return Int(v), nil
	case float64:
		return Float(v), nil
	case string:
		return Text(v), nil
	case []any:
		out := make(List, len(v))
		for i, el := range v {
			cv, err := FromNative(el)
			if err != nil {
				return nil, err
			}
			out[i] = cv
		}
		return out, nil
	case map[string]any:
		out := make(Map, len(v))
		for k, el := range v {
			cv, err := FromNative(el)
			if err != nil {
				return nil, err
			}
			out[k] = cv
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported literal type %T", v)
	}
}
