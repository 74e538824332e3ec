// Package planner compiles query specifications into executable SQL plans
// and decodes positional result rows back into tag-addressed values.
package planner

import "errors"

// Specification errors: the caller's spec is malformed. All are reported at
// build time with the offending tag, operator or value in the message.
var (
	ErrUnknownOperator     = errors.New("unknown operator")
	ErrAmbiguousCast       = errors.New("cast required")
	ErrUnknownCast         = errors.New("unknown cast key")
	ErrInvalidRelation     = errors.New("invalid relation")
	ErrStarFunc            = errors.New("function on whole-entity projection")
	ErrUnknownFunc         = errors.New("invalid function specification")
	ErrDuplicateProjection = errors.New("duplicate projection")
	ErrEmptyIn             = errors.New("value for operator in is an empty list")
	ErrHeterogeneousIn     = errors.New("value for operator in contains more than one type")
	ErrBadValue            = errors.New("invalid operator value")
	ErrNoEdge              = errors.New("relation binds no edge attributes")
)

// ErrUnsupportedDialect gates diagnostic features that are only defined for
// one SQL dialect.
var ErrUnsupportedDialect = errors.New("unsupported dialect")
