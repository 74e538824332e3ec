package qspec

import (
	"errors"
	"fmt"

	"github.com/atlekbai/graph_query/internal/schema"
)

var (
	ErrEmptyPath    = errors.New("empty path")
	ErrDuplicateTag = errors.New("duplicate tag")
	ErrUnknownTag   = errors.New("unknown tag")
	ErrVertex       = errors.New("invalid path vertex")
	ErrPaging       = errors.New("invalid paging")
	ErrOrder        = errors.New("invalid order")
)

// Normalize fills in derived defaults: a joined vertex without an explicit
// edge tag gets `<join_to>--<tag>`. Call before Validate and Fingerprint so
// equivalent specs hash identically.
func (q *Query) Normalize() {
	for i := range q.Path {
		v := &q.Path[i]
		if v.HasJoin() && v.EdgeTag == "" {
			v.EdgeTag = v.JoinTo + "--" + v.Tag
		}
	}
}

// Validate checks the structural invariants of the specification against
// the entity registry. It does not touch operators or field paths; those
// are the planner's concern.
func (q *Query) Validate(reg *schema.Registry) error {
	if len(q.Path) == 0 {
		return ErrEmptyPath
	}

	pathKinds := make(map[schema.Kind]bool)
	for _, k := range reg.PathKinds() {
		pathKinds[k] = true
	}

	tags := make(map[string]bool, 2*len(q.Path))
	vertexTags := make(map[string]bool, len(q.Path))
	for i := range q.Path {
		v := &q.Path[i]
		if v.Tag == "" {
			return fmt.Errorf("%w: vertex %d has no tag", ErrVertex, i)
		}
		if tags[v.Tag] {
			return fmt.Errorf("%w %q", ErrDuplicateTag, v.Tag)
		}
		if _, err := reg.Def(v.Kind); err != nil {
			return fmt.Errorf("vertex %q: %w", v.Tag, err)
		}
		if !pathKinds[v.Kind] {
			return fmt.Errorf("%w: kind %q of %q cannot appear as a path vertex", ErrVertex, v.Kind, v.Tag)
		}

		if i == 0 {
			if v.HasJoin() {
				return fmt.Errorf("%w: first vertex %q cannot have a join", ErrVertex, v.Tag)
			}
		} else {
			if v.Rel == "" {
				return fmt.Errorf("%w: vertex %q has no relation keyword", ErrVertex, v.Tag)
			}
			if v.JoinTo == "" {
				return fmt.Errorf("%w: vertex %q has no join_to", ErrVertex, v.Tag)
			}
			if !vertexTags[v.JoinTo] {
				return fmt.Errorf("%w: join_to %q of vertex %q does not name an earlier path vertex", ErrUnknownTag, v.JoinTo, v.Tag)
			}
		}
		tags[v.Tag] = true
		vertexTags[v.Tag] = true

		if v.EdgeTag != "" {
			if tags[v.EdgeTag] {
				return fmt.Errorf("%w %q (edge tag)", ErrDuplicateTag, v.EdgeTag)
			}
			tags[v.EdgeTag] = true
		}
	}

	for _, tag := range mapKeys(q.Filters) {
		if !tags[tag] {
			return fmt.Errorf("%w %q in filters", ErrUnknownTag, tag)
		}
	}
	for _, tag := range mapKeys(q.Project) {
		if !tags[tag] {
			return fmt.Errorf("%w %q in project", ErrUnknownTag, tag)
		}
	}
	for i := range q.OrderBy {
		o := &q.OrderBy[i]
		if !tags[o.Tag] {
			return fmt.Errorf("%w %q in order_by", ErrUnknownTag, o.Tag)
		}
		switch o.Order {
		case "", "asc", "desc":
		default:
			return fmt.Errorf("%w %q for %s.%s (want asc or desc)", ErrOrder, o.Order, o.Tag, o.Field)
		}
	}

	if q.Limit != nil && *q.Limit < 0 {
		return fmt.Errorf("%w: negative limit %d", ErrPaging, *q.Limit)
	}
	if q.Offset != nil && *q.Offset < 0 {
		return fmt.Errorf("%w: negative offset %d", ErrPaging, *q.Offset)
	}
	return nil
}

// VertexByTag returns the vertex carrying the tag, or nil.
func (q *Query) VertexByTag(tag string) *Vertex {
	for i := range q.Path {
		if q.Path[i].Tag == tag {
			return &q.Path[i]
		}
	}
	return nil
}

// EdgeTags lists the edge tags of joined vertices in path order.
func (q *Query) EdgeTags() []string {
	var out []string
	for i := range q.Path {
		if q.Path[i].HasJoin() && q.Path[i].EdgeTag != "" {
			out = append(out, q.Path[i].EdgeTag)
		}
	}
	return out
}

func mapKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
