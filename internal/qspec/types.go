package qspec

import (
	"github.com/atlekbai/graph_query/internal/schema"
)

// Query is the declarative specification of one walk over the graph: which
// entities to visit, how they join, and what to filter, project, order and
// page. It is plain data; compilation happens in the planner.
type Query struct {
	Path     []Vertex
	Filters  map[string]Map
	Project  map[string][]Projection
	OrderBy  []OrderItem
	Limit    *int64
	Offset   *int64
	Distinct bool
}

// Vertex is one step of the path. The first vertex stands alone; every
// later vertex joins to an earlier tag through a relation keyword.
type Vertex struct {
	Tag     string
	Kind    schema.Kind
	Rel     string
	JoinTo  string
	EdgeTag string
	Outer   bool
}

// HasJoin reports whether the vertex is joined to an earlier one.
func (v *Vertex) HasJoin() bool { return v.Rel != "" || v.JoinTo != "" }

// Projection selects one output of a tag: a dotted field path, `*` for the
// whole entity, or `**` for every column. Cast is required when the path
// descends into a semi-structured column. Func optionally aggregates.
type Projection struct {
	Field string
	Cast  string
	Func  string
}

// OrderItem orders the result by one field of one tag.
type OrderItem struct {
	Tag   string
	Field string
	Order string
	Cast  string
}

// Descending reports whether the item sorts descending. The zero order is
// ascending; anything other than asc/desc is rejected during validation.
func (o *OrderItem) Descending() bool { return o.Order == "desc" }
