package handler

import (
	"net/http"

	"github.com/atlekbai/graph_query/internal/planner"
	"github.com/atlekbai/graph_query/internal/schema"
)

// KindSchema describes one entity kind under its public column names.
type KindSchema struct {
	Table   string   `json:"table,omitempty"`
	Columns []string `json:"columns"`
	JSONB   []string `json:"jsonb,omitempty"`
}

type SchemaResponse struct {
	Kinds     map[string]KindSchema `json:"kinds"`
	Edges     map[string]KindSchema `json:"edges"`
	Relations []planner.Relation    `json:"relations"`
}

// Schema handles GET /api/schema: the path kinds, the edge kinds their
// relations bind, and the full relation table, for clients composing
// queries.
func (h *Handler) Schema(w http.ResponseWriter, r *http.Request) {
	resp, err := h.schemaResponse()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"Schema introspection failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) schemaResponse() (*SchemaResponse, error) {
	relations := planner.Relations()
	resp := &SchemaResponse{
		Kinds:     make(map[string]KindSchema),
		Edges:     make(map[string]KindSchema),
		Relations: relations,
	}

	for _, k := range h.reg.PathKinds() {
		d, err := h.reg.Def(k)
		if err != nil {
			return nil, err
		}
		resp.Kinds[string(k)] = kindSchema(d)
	}

	for _, rel := range relations {
		if rel.Edge == "" {
			continue
		}
		if _, ok := resp.Edges[string(rel.Edge)]; ok {
			continue
		}
		d, err := h.reg.Def(rel.Edge)
		if err != nil {
			return nil, err
		}
		resp.Edges[string(rel.Edge)] = kindSchema(d)
	}

	return resp, nil
}

func kindSchema(d *schema.Def) KindSchema {
	ks := KindSchema{Columns: make([]string, 0, len(d.Columns))}
	if d.StorageTable != "" {
		ks.Table = d.StorageTable
		if d.StorageSchema != "" {
			ks.Table = d.StorageSchema + "." + d.StorageTable
		}
	}
	for _, col := range d.Columns {
		pub := d.InnerToOuter(col)
		ks.Columns = append(ks.Columns, pub)
		if d.IsJSONB(col) {
			ks.JSONB = append(ks.JSONB, pub)
		}
	}
	return ks
}
