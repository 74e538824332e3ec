package planner

import (
	"sort"

	"github.com/atlekbai/graph_query/internal/schema"
)

// Relation describes one entry of the join dispatch table. Edge names the
// kind bound to the relation's edge tag, or "" for relations that join
// without a relation row.
type Relation struct {
	Kind   schema.Kind   `json:"kind"`
	Rel    string        `json:"rel"`
	JoinTo []schema.Kind `json:"join_to"`
	Edge   schema.Kind   `json:"edge,omitempty"`
}

// Relations lists every (kind, relation) pair the planner can join, sorted
// by kind then relation name.
func Relations() []Relation {
	out := make([]Relation, 0, len(joinStrategies))
	for k, st := range joinStrategies {
		edge := st.junction
		if st.kind == joinClosure {
			edge = schema.KindWalk
		}
		out = append(out, Relation{
			Kind:   k.kind,
			Rel:    k.rel,
			JoinTo: append([]schema.Kind(nil), st.joinTo...),
			Edge:   edge,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Rel < out[j].Rel
	})
	return out
}
