package schema

import (
	"errors"
	"fmt"
	"strings"
)

// QuoteIdent quotes a SQL identifier, escaping embedded double quotes.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Kind identifies one of the closed set of graph entity kinds.
type Kind string

const (
	KindNode    Kind = "node"
	KindGroup   Kind = "group"
	KindUser    Kind = "user"
	KindMachine Kind = "machine"
	KindComment Kind = "comment"
	KindLog     Kind = "log"

	// Edge kinds are bound through joins only; they never appear as a
	// path vertex. KindWalk is the synthetic relation produced by a
	// transitive-closure join.
	KindEdge       Kind = "edge"
	KindMembership Kind = "membership"
	KindWalk       Kind = "walk"
)

var (
	ErrUnknownKind    = errors.New("unknown entity kind")
	ErrUnknownColumn  = errors.New("unknown column")
	ErrReservedColumn = errors.New("reserved column")
)

// Def describes the storage shape of one entity kind: its table, the set of
// valid columns in DDL order, which columns hold semi-structured JSONB
// documents, and the outer<->inner rename table for reserved column names.
type Def struct {
	Kind          Kind
	StorageSchema string
	StorageTable  string
	Columns       []string

	jsonb        map[string]bool
	outerToInner map[string]string
	innerToOuter map[string]string
}

// TableName returns the fully qualified, quoted table name, or "" for
// synthetic kinds that have no backing table.
func (d *Def) TableName() string {
	if d.StorageTable == "" {
		return ""
	}
	if d.StorageSchema == "" {
		return QuoteIdent(d.StorageTable)
	}
	return QuoteIdent(d.StorageSchema) + "." + QuoteIdent(d.StorageTable)
}

// HasColumn reports whether col is a valid (inner) column of the kind.
func (d *Def) HasColumn(col string) bool {
	for _, c := range d.Columns {
		if c == col {
			return true
		}
	}
	return false
}

// IsJSONB reports whether col holds a semi-structured JSONB document.
func (d *Def) IsJSONB(col string) bool {
	return d.jsonb[col]
}

// OuterToInner maps a public field name to its storage column name. Names
// without a rename entry pass through unchanged. A caller-supplied inner
// reserved name is rejected with a hint to use the public name instead.
func (d *Def) OuterToInner(field string) (string, error) {
	if outer, ok := d.innerToOuter[field]; ok {
		return "", fmt.Errorf("%w %q on %s: use %q", ErrReservedColumn, field, d.Kind, outer)
	}
	if inner, ok := d.outerToInner[field]; ok {
		return inner, nil
	}
	return field, nil
}

// InnerToOuter maps a storage column name back to its public field name.
func (d *Def) InnerToOuter(col string) string {
	if outer, ok := d.innerToOuter[col]; ok {
		return outer
	}
	return col
}

// Registry supplies column sets, JSONB membership and the reserved-name
// remap for every entity kind. The set is closed; join strategies and the
// planner rely on it being complete.
type Registry struct {
	defs map[Kind]*Def
}

// NewRegistry returns the registry for the graph store schema.
func NewRegistry() *Registry {
	metadataRemap := map[string]string{"metadata": "_metadata"}

	defs := []*Def{
		{
			Kind:          KindNode,
			StorageSchema: "graph",
			StorageTable:  "nodes",
			Columns: []string{
				"id", "uuid", "kind", "label", "description",
				"ctime", "mtime", "attributes", "extras",
				"machine_id", "user_id",
			},
			jsonb: map[string]bool{"attributes": true, "extras": true},
		},
		{
			Kind:          KindGroup,
			StorageSchema: "graph",
			StorageTable:  "groups",
			Columns: []string{
				"id", "uuid", "label", "category", "description",
				"ctime", "extras", "user_id",
			},
			jsonb: map[string]bool{"extras": true},
		},
		{
			Kind:          KindUser,
			StorageSchema: "graph",
			StorageTable:  "users",
			Columns:       []string{"id", "email", "first_name", "last_name", "institution"},
		},
		{
			Kind:          KindMachine,
			StorageSchema: "graph",
			StorageTable:  "machines",
			Columns: []string{
				"id", "uuid", "label", "hostname", "description",
				"scheduler", "transport", "_metadata",
			},
			jsonb:        map[string]bool{"_metadata": true},
			outerToInner: metadataRemap,
		},
		{
			Kind:          KindComment,
			StorageSchema: "graph",
			StorageTable:  "comments",
			Columns:       []string{"id", "uuid", "node_id", "ctime", "mtime", "user_id", "content"},
		},
		{
			Kind:          KindLog,
			StorageSchema: "graph",
			StorageTable:  "logs",
			Columns: []string{
				"id", "uuid", "time", "logger", "level",
				"node_id", "message", "_metadata",
			},
			jsonb:        map[string]bool{"_metadata": true},
			outerToInner: metadataRemap,
		},
		{
			Kind:          KindEdge,
			StorageSchema: "graph",
			StorageTable:  "edges",
			Columns:       []string{"id", "source_id", "target_id", "label", "kind"},
		},
		{
			Kind:          KindMembership,
			StorageSchema: "graph",
			StorageTable:  "group_nodes",
			Columns:       []string{"id", "group_id", "node_id"},
		},
		{
			Kind:    KindWalk,
			Columns: []string{"ancestor_id", "descendant_id", "depth", "path"},
		},
	}

	m := make(map[Kind]*Def, len(defs))
	for _, d := range defs {
		if d.jsonb == nil {
			d.jsonb = map[string]bool{}
		}
		if d.outerToInner == nil {
			d.outerToInner = map[string]string{}
		}
		d.innerToOuter = make(map[string]string, len(d.outerToInner))
		for outer, inner := range d.outerToInner {
			d.innerToOuter[inner] = outer
		}
		m[d.Kind] = d
	}
	return &Registry{defs: m}
}

// Def returns the definition for a kind.
func (r *Registry) Def(kind Kind) (*Def, error) {
	d, ok := r.defs[kind]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownKind, kind)
	}
	return d, nil
}

// PathKinds lists the kinds that may appear as path vertices, in a stable
// order.
func (r *Registry) PathKinds() []Kind {
	return []Kind{KindNode, KindGroup, KindUser, KindMachine, KindComment, KindLog}
}
