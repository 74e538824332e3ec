package qspec

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"strconv"
)

// hashDomain separates plan fingerprints from any other sha256 use; bump
// the version when the canonical encoding changes.
const hashDomain = "graphquery/plan/v1"

// Fingerprint returns the content hash of the specification: sha256 over a
// domain-separated canonical encoding. Map keys are sorted; path, project
// lists and order_by keep their declared order. Two specs with the same
// fingerprint compile to the same plan.
func Fingerprint(q *Query) string {
	h := sha256.New()
	io.WriteString(h, hashDomain)
	h.Write([]byte{0})
	writeCanonical(h, queryValue(q))
	return hex.EncodeToString(h.Sum(nil))
}

// queryValue lowers the full specification into the Value variant so one
// canonical encoder covers everything.
func queryValue(q *Query) Value {
	path := make(List, len(q.Path))
	for i := range q.Path {
		v := &q.Path[i]
		path[i] = Map{
			"tag":      Text(v.Tag),
			"kind":     Text(v.Kind),
			"rel":      Text(v.Rel),
			"join_to":  Text(v.JoinTo),
			"edge_tag": Text(v.EdgeTag),
			"outer":    Bool(v.Outer),
		}
	}

	filters := make(Map, len(q.Filters))
	for tag, spec := range q.Filters {
		filters[tag] = spec
	}

	project := make(Map, len(q.Project))
	for tag, items := range q.Project {
		list := make(List, len(items))
		for i, it := range items {
			list[i] = Map{
				"field": Text(it.Field),
				"cast":  Text(it.Cast),
				"func":  Text(it.Func),
			}
		}
		project[tag] = list
	}

	orderBy := make(List, len(q.OrderBy))
	for i := range q.OrderBy {
		o := &q.OrderBy[i]
		orderBy[i] = Map{
			"tag":   Text(o.Tag),
			"field": Text(o.Field),
			"order": Text(o.Order),
			"cast":  Text(o.Cast),
		}
	}

	var limit, offset Value = Null{}, Null{}
	if q.Limit != nil {
		limit = Int(*q.Limit)
	}
	if q.Offset != nil {
		offset = Int(*q.Offset)
	}

	return Map{
		"path":     path,
		"filters":  filters,
		"project":  project,
		"order_by": orderBy,
		"limit":    limit,
		"offset":   offset,
		"distinct": Bool(q.Distinct),
	}
}

// writeCanonical emits a JSON-shaped canonical encoding: object keys in
// lexical order, floats in exponent form.
func writeCanonical(w io.Writer, v Value) {
	switch v := v.(type) {
	case Null:
		io.WriteString(w, "null")
	case Bool:
		if v {
			io.WriteString(w, "true")
		} else {
			io.WriteString(w, "false")
		}
	case Int:
		io.WriteString(w, strconv.FormatInt(int64(v), 10))
	case Float:
		// Exponent form keeps Float(1) distinct from Int(1).
		io.WriteString(w, strconv.FormatFloat(float64(v), 'e', -1, 64))
	case Text:
		b, _ := json.Marshal(string(v))
		w.Write(b)
	case List:
		io.WriteString(w, "[")
		for i, el := range v {
			if i > 0 {
				io.WriteString(w, ",")
			}
			writeCanonical(w, el)
		}
		io.WriteString(w, "]")
	case Map:
		io.WriteString(w, "{")
		for i, k := range v.SortedKeys() {
			if i > 0 {
				io.WriteString(w, ",")
			}
			b, _ := json.Marshal(k)
			w.Write(b)
			io.WriteString(w, ":")
			writeCanonical(w, v[k])
		}
		io.WriteString(w, "}")
	}
}
