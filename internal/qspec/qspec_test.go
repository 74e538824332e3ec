package qspec

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/atlekbai/graph_query/internal/schema"
)

func TestFromNative(t *testing.T) {
	tests := []struct {
		name string
		in   any
		tag  TypeTag
	}{
		{"nil", nil, TagNull},
		{"bool", true, TagBoolean},
		{"int number", json.Number("42"), TagNumber},
		{"float number", json.Number("2.5"), TagNumber},
		{"string", "hello", TagString},
		{"list", []any{json.Number("1"), json.Number("2")}, TagArray},
		{"map", map[string]any{"a": "b"}, TagObject},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := FromNative(tt.in)
			if err != nil {
				t.Fatalf("FromNative: %v", err)
			}
			if v.Tag() != tt.tag {
				t.Errorf("tag = %s, want %s", v.Tag(), tt.tag)
			}
		})
	}

	// Integers must stay integral through json.Number.
	v, _ := FromNative(json.Number("42"))
	if _, ok := v.(Int); !ok {
		t.Errorf("expected Int, got %T", v)
	}
	v, _ = FromNative(json.Number("2.5"))
	if _, ok := v.(Float); !ok {
		t.Errorf("expected Float, got %T", v)
	}

	if _, err := FromNative(struct{}{}); err == nil {
		t.Error("expected error for unsupported type")
	}
}

func TestDecode(t *testing.T) {
	input := `{
		"path": [
			{"tag": "calc", "kind": "node"},
			{"tag": "res", "kind": "node", "rel": "output_of", "join_to": "calc"}
		],
		"filters": {
			"calc": {"attributes.energy": {">": 1.5}, "label": "relax"}
		},
		"project": {
			"res": ["uuid", {"field": "attributes.energy", "cast": "f"}]
		},
		"order_by": [{"tag": "res", "field": "ctime", "order": "desc"}],
		"limit": 10,
		"distinct": true
	}`

	q, err := DecodeBytes([]byte(input))
	if err != nil {
		t.Fatalf("DecodeBytes: %v", err)
	}

	if len(q.Path) != 2 {
		t.Fatalf("got %d path vertices, want 2", len(q.Path))
	}
	if q.Path[1].Rel != "output_of" || q.Path[1].JoinTo != "calc" {
		t.Errorf("vertex join = (%s, %s)", q.Path[1].Rel, q.Path[1].JoinTo)
	}

	f := q.Filters["calc"]
	if f == nil {
		t.Fatal("missing calc filters")
	}
	opMap, ok := f["attributes.energy"].(Map)
	if !ok {
		t.Fatalf("attributes.energy filter is %T", f["attributes.energy"])
	}
	if _, ok := opMap[">"].(Float); !ok {
		t.Errorf("> value is %T, want Float", opMap[">"])
	}
	if lit, ok := f["label"].(Text); !ok || lit != "relax" {
		t.Errorf("label literal = %v", f["label"])
	}

	proj := q.Project["res"]
	if len(proj) != 2 {
		t.Fatalf("got %d projections, want 2", len(proj))
	}
	if proj[0].Field != "uuid" || proj[0].Cast != "" {
		t.Errorf("string shorthand projection = %+v", proj[0])
	}
	if proj[1].Field != "attributes.energy" || proj[1].Cast != "f" {
		t.Errorf("object projection = %+v", proj[1])
	}

	if len(q.OrderBy) != 1 || !q.OrderBy[0].Descending() {
		t.Errorf("order_by = %+v", q.OrderBy)
	}
	if q.Limit == nil || *q.Limit != 10 {
		t.Errorf("limit = %v", q.Limit)
	}
	if !q.Distinct {
		t.Error("distinct not set")
	}
}

func TestNormalizeEdgeTagDefault(t *testing.T) {
	q := &Query{Path: []Vertex{
		{Tag: "a", Kind: schema.KindNode},
		{Tag: "b", Kind: schema.KindNode, Rel: "output_of", JoinTo: "a"},
		{Tag: "c", Kind: schema.KindGroup, Rel: "containing", JoinTo: "b", EdgeTag: "membership"},
	}}
	q.Normalize()

	if got := q.Path[1].EdgeTag; got != "a--b" {
		t.Errorf("defaulted edge tag = %q, want a--b", got)
	}
	if got := q.Path[2].EdgeTag; got != "membership" {
		t.Errorf("explicit edge tag overwritten: %q", got)
	}
	if got := q.EdgeTags(); len(got) != 2 || got[0] != "a--b" || got[1] != "membership" {
		t.Errorf("EdgeTags = %v", got)
	}
}

func TestValidate(t *testing.T) {
	reg := schema.NewRegistry()

	valid := func() *Query {
		return &Query{Path: []Vertex{
			{Tag: "n", Kind: schema.KindNode},
			{Tag: "g", Kind: schema.KindGroup, Rel: "containing", JoinTo: "n"},
		}}
	}

	tests := []struct {
		name    string
		mutate  func(*Query)
		wantErr error
	}{
		{"valid", func(q *Query) {}, nil},
		{"empty path", func(q *Query) { q.Path = nil }, ErrEmptyPath},
		{"missing tag", func(q *Query) { q.Path[0].Tag = "" }, ErrVertex},
		{"duplicate tag", func(q *Query) { q.Path[1].Tag = "n" }, ErrDuplicateTag},
		{"unknown kind", func(q *Query) { q.Path[0].Kind = "molecule" }, schema.ErrUnknownKind},
		{"edge kind as vertex", func(q *Query) { q.Path[0].Kind = schema.KindEdge }, ErrVertex},
		{"first vertex joins", func(q *Query) { q.Path[0].Rel = "output_of" }, ErrVertex},
		{"missing rel", func(q *Query) { q.Path[1].Rel = "" }, ErrVertex},
		{"missing join_to", func(q *Query) { q.Path[1].JoinTo = "" }, ErrVertex},
		{"forward join_to", func(q *Query) { q.Path[1].JoinTo = "g" }, ErrUnknownTag},
		{"unknown filter tag", func(q *Query) { q.Filters = map[string]Map{"x": {}} }, ErrUnknownTag},
		{"unknown project tag", func(q *Query) { q.Project = map[string][]Projection{"x": {{Field: "*"}}} }, ErrUnknownTag},
		{"unknown order tag", func(q *Query) { q.OrderBy = []OrderItem{{Tag: "x", Field: "id"}} }, ErrUnknownTag},
		{"bad order token", func(q *Query) { q.OrderBy = []OrderItem{{Tag: "n", Field: "id", Order: "sideways"}} }, ErrOrder},
		{"negative limit", func(q *Query) { q.Limit = new(int64); *q.Limit = -1 }, ErrPaging},
		{"negative offset", func(q *Query) { q.Offset = new(int64); *q.Offset = -5 }, ErrPaging},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := valid()
			tt.mutate(q)
			q.Normalize()
			err := q.Validate(reg)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("got %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateEdgeTagFiltersAllowed(t *testing.T) {
	reg := schema.NewRegistry()
	q := &Query{
		Path: []Vertex{
			{Tag: "a", Kind: schema.KindNode},
			{Tag: "b", Kind: schema.KindNode, Rel: "output_of", JoinTo: "a"},
		},
		Filters: map[string]Map{"a--b": {"label": Text("CREATE")}},
	}
	q.Normalize()
	if err := q.Validate(reg); err != nil {
		t.Fatalf("edge tag filter rejected: %v", err)
	}
}

func TestFingerprint(t *testing.T) {
	base := `{
		"path": [{"tag": "n", "kind": "node"}],
		"filters": {"n": {"label": "x", "kind": {"like": "data.%"}}},
		"limit": 5
	}`
	// Same content, different key order.
	reordered := `{
		"limit": 5,
		"filters": {"n": {"kind": {"like": "data.%"}, "label": "x"}},
		"path": [{"tag": "n", "kind": "node"}]
	}`
	q1, err := DecodeBytes([]byte(base))
	if err != nil {
		t.Fatal(err)
	}
	q2, err := DecodeBytes([]byte(reordered))
	if err != nil {
		t.Fatal(err)
	}
	q1.Normalize()
	q2.Normalize()

	fp1, fp2 := Fingerprint(q1), Fingerprint(q2)
	if fp1 != fp2 {
		t.Errorf("key order changed fingerprint: %s vs %s", fp1, fp2)
	}
	if len(fp1) != 64 || strings.ToLower(fp1) != fp1 {
		t.Errorf("fingerprint is not lowercase hex sha256: %s", fp1)
	}

	// Any semantic change must change the hash.
	*q2.Limit = 6
	if Fingerprint(q2) == fp1 {
		t.Error("limit change did not change fingerprint")
	}
	*q2.Limit = 5
	q2.Distinct = true
	if Fingerprint(q2) == fp1 {
		t.Error("distinct change did not change fingerprint")
	}
}

func TestFingerprintIntFloatDistinct(t *testing.T) {
	q := func(lit string) *Query {
		spec, err := DecodeBytes([]byte(`{"path": [{"tag": "n", "kind": "node"}], "filters": {"n": {"attributes.x": {"==": ` + lit + `}}}}`))
		if err != nil {
			t.Fatal(err)
		}
		return spec
	}
	if Fingerprint(q("1")) == Fingerprint(q("1.0")) {
		t.Error("integer and float literals hash the same")
	}
}
