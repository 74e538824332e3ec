package qspec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/atlekbai/graph_query/internal/schema"
)

type wireVertex struct {
	Tag     string `json:"tag"`
	Kind    string `json:"kind"`
	Rel     string `json:"rel"`
	JoinTo  string `json:"join_to"`
	EdgeTag string `json:"edge_tag"`
	Outer   bool   `json:"outer"`
}

// wireProjection accepts either a bare string ("uuid") or the full object
// form ({"field": "attributes.energy", "cast": "f", "func": "max"}).
type wireProjection struct {
	Field string `json:"field"`
	Cast  string `json:"cast"`
	Func  string `json:"func"`
}

func (p *wireProjection) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &p.Field)
	}
	type plain wireProjection
	return json.Unmarshal(data, (*plain)(p))
}

type wireOrder struct {
	Tag   string `json:"tag"`
	Field string `json:"field"`
	Order string `json:"order"`
	Cast  string `json:"cast"`
}

type wireQuery struct {
	Path     []wireVertex                `json:"path"`
	Filters  map[string]map[string]any   `json:"filters"`
	Project  map[string][]wireProjection `json:"project"`
	OrderBy  []wireOrder                 `json:"order_by"`
	Limit    *int64                      `json:"limit"`
	Offset   *int64                      `json:"offset"`
	Distinct bool                        `json:"distinct"`
}

// Decode reads a JSON query specification. Numbers inside filter values are
// kept as json.Number so integer literals survive as integers.
func Decode(r io.Reader) (*Query, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var w wireQuery
	if err := dec.Decode(&w); err != nil {
		return nil, fmt.Errorf("decode query spec: %w", err)
	}

	q := &Query{
		Limit:    w.Limit,
		Offset:   w.Offset,
		Distinct: w.Distinct,
	}

	q.Path = make([]Vertex, len(w.Path))
	for i, v := range w.Path {
		q.Path[i] = Vertex{
			Tag:     v.Tag,
			Kind:    schema.Kind(v.Kind),
			Rel:     v.Rel,
			JoinTo:  v.JoinTo,
			EdgeTag: v.EdgeTag,
			Outer:   v.Outer,
		}
	}

	if len(w.Filters) > 0 {
		q.Filters = make(map[string]Map, len(w.Filters))
		for tag, spec := range w.Filters {
			val, err := FromNative(map[string]any(spec))
			if err != nil {
				return nil, fmt.Errorf("filters for tag %q: %w", tag, err)
			}
			q.Filters[tag] = val.(Map)
		}
	}

	if len(w.Project) > 0 {
		q.Project = make(map[string][]Projection, len(w.Project))
		for tag, items := range w.Project {
			out := make([]Projection, len(items))
			for i, it := range items {
				out[i] = Projection{Field: it.Field, Cast: it.Cast, Func: it.Func}
			}
			q.Project[tag] = out
		}
	}

	for _, o := range w.OrderBy {
		q.OrderBy = append(q.OrderBy, OrderItem{Tag: o.Tag, Field: o.Field, Order: o.Order, Cast: o.Cast})
	}

	return q, nil
}

// DecodeBytes is Decode over a byte slice.
func DecodeBytes(data []byte) (*Query, error) {
	return Decode(bytes.NewReader(data))
}
