// Package handler exposes the query compiler over HTTP. Every query
// endpoint accepts a JSON query specification in the request body;
// specification errors come back as 400 with the offending detail,
// execution errors as 500.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"

	"github.com/atlekbai/graph_query/internal/backend"
	"github.com/atlekbai/graph_query/internal/planner"
	"github.com/atlekbai/graph_query/internal/qspec"
	"github.com/atlekbai/graph_query/internal/schema"
)

// defaultBatchSize is the advisory row batch handed to the runner's cursor.
const defaultBatchSize = 1000

type Handler struct {
	reg     *schema.Registry
	runner  backend.Runner
	log     *slog.Logger
	timeout time.Duration
	maxBody int64
}

type Option func(*Handler)

func WithLogger(log *slog.Logger) Option {
	return func(h *Handler) { h.log = log }
}

// WithTimeout caps the execution time of each query request. Zero means
// no cap beyond the client disconnecting.
func WithTimeout(d time.Duration) Option {
	return func(h *Handler) { h.timeout = d }
}

// WithBodyLimit caps the request body size in bytes.
func WithBodyLimit(n int64) Option {
	return func(h *Handler) { h.maxBody = n }
}

func New(reg *schema.Registry, runner backend.Runner, opts ...Option) *Handler {
	h := &Handler{
		reg:     reg,
		runner:  runner,
		log:     slog.Default(),
		maxBody: 1 << 20,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the endpoints on r, which should already be scoped to
// the API prefix.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/query", h.Query).Methods(http.MethodPost)
	r.HandleFunc("/query/rows", h.Rows).Methods(http.MethodPost)
	r.HandleFunc("/query/first", h.First).Methods(http.MethodPost)
	r.HandleFunc("/query/count", h.Count).Methods(http.MethodPost)
	r.HandleFunc("/query/sql", h.SQL).Methods(http.MethodPost)
	r.HandleFunc("/query/explain", h.Explain).Methods(http.MethodPost)
	r.HandleFunc("/schema", h.Schema).Methods(http.MethodGet)
}

// builder returns a fresh single-use builder. Builders are single-writer,
// so each request (and each errgroup goroutine) gets its own.
func (h *Handler) builder() *planner.Builder {
	return planner.New(h.reg, h.runner, planner.WithLogger(h.log))
}

// decodeQuery reads the request body into a query specification. A nil
// return means the error response has already been written.
func (h *Handler) decodeQuery(w http.ResponseWriter, r *http.Request) *qspec.Query {
	body := http.MaxBytesReader(w, r.Body, h.maxBody)
	q, err := qspec.Decode(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE",
				"Request body too large", err.Error())
			return nil
		}
		writeError(w, http.StatusBadRequest, "INVALID_BODY",
			"Malformed query document", err.Error())
		return nil
	}
	return q
}

// plan validates and compiles the specification up front so every
// specification error is classified as the client's before execution
// starts. A false return means the error response has been written.
func (h *Handler) plan(w http.ResponseWriter, b *planner.Builder, q *qspec.Query) bool {
	if _, err := b.Plan(q); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_QUERY",
			"Query specification rejected", err.Error())
		return false
	}
	return true
}

func (h *Handler) queryCtx(r *http.Request) (context.Context, context.CancelFunc) {
	if h.timeout <= 0 {
		return r.Context(), func() {}
	}
	return context.WithTimeout(r.Context(), h.timeout)
}

func writeExecError(w http.ResponseWriter, err error) {
	if errors.Is(err, context.DeadlineExceeded) {
		writeError(w, http.StatusGatewayTimeout, "QUERY_TIMEOUT", "Query timed out", err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Query failed", err.Error())
}

func boolParam(r *http.Request, name string) bool {
	if !r.URL.Query().Has(name) {
		return false
	}
	v := r.URL.Query().Get(name)
	return v == "" || v == "true" || v == "1"
}

type QueryResponse struct {
	Rows  []map[string]map[string]any `json:"rows"`
	Count int64                       `json:"count"`
}

// Query handles POST /api/query: decoded records plus the total count,
// fetched concurrently.
func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	q := h.decodeQuery(w, r)
	if q == nil {
		return
	}
	b := h.builder()
	if !h.plan(w, b, q) {
		return
	}

	ctx, cancel := h.queryCtx(r)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	var count int64
	g.Go(func() error {
		var err error
		count, err = h.builder().Count(ctx, q)
		return err
	})

	rows := []map[string]map[string]any{}
	g.Go(func() error {
		it, err := b.IterDict(ctx, q, defaultBatchSize)
		if err != nil {
			return err
		}
		defer it.Close()
		for it.Next() {
			rec, err := it.Record()
			if err != nil {
				return err
			}
			rows = append(rows, rec)
		}
		return it.Err()
	})

	if err := g.Wait(); err != nil {
		writeExecError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, QueryResponse{Rows: rows, Count: count})
}

type RowsResponse struct {
	Columns []planner.Field `json:"columns"`
	Rows    [][]any         `json:"rows"`
}

// Rows handles POST /api/query/rows: positional values with the column
// index alongside.
func (h *Handler) Rows(w http.ResponseWriter, r *http.Request) {
	q := h.decodeQuery(w, r)
	if q == nil {
		return
	}
	b := h.builder()
	if !h.plan(w, b, q) {
		return
	}

	ctx, cancel := h.queryCtx(r)
	defer cancel()

	it, err := b.IterAll(ctx, q, defaultBatchSize)
	if err != nil {
		writeExecError(w, err)
		return
	}
	defer it.Close()

	resp := RowsResponse{Columns: it.Plan().Index, Rows: [][]any{}}
	for it.Next() {
		vals, err := it.Values()
		if err != nil {
			writeExecError(w, err)
			return
		}
		resp.Rows = append(resp.Rows, vals)
	}
	if err := it.Err(); err != nil {
		writeExecError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

type FirstResponse struct {
	Row []any `json:"row"`
}

// First handles POST /api/query/first: the first result row, or null.
func (h *Handler) First(w http.ResponseWriter, r *http.Request) {
	q := h.decodeQuery(w, r)
	if q == nil {
		return
	}
	b := h.builder()
	if !h.plan(w, b, q) {
		return
	}

	ctx, cancel := h.queryCtx(r)
	defer cancel()

	row, err := b.First(ctx, q)
	if err != nil {
		writeExecError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, FirstResponse{Row: row})
}

// Count handles POST /api/query/count.
func (h *Handler) Count(w http.ResponseWriter, r *http.Request) {
	q := h.decodeQuery(w, r)
	if q == nil {
		return
	}
	b := h.builder()
	if !h.plan(w, b, q) {
		return
	}

	ctx, cancel := h.queryCtx(r)
	defer cancel()

	count, err := b.Count(ctx, q)
	if err != nil {
		writeExecError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"count": count})
}

// SQL handles POST /api/query/sql: the rendered statement, parameterized
// by default, literals inlined with ?inline=true.
func (h *Handler) SQL(w http.ResponseWriter, r *http.Request) {
	q := h.decodeQuery(w, r)
	if q == nil {
		return
	}

	sqlText, err := h.builder().AsSQL(q, boolParam(r, "inline"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_QUERY",
			"Query specification rejected", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"sql": sqlText})
}

// Explain handles POST /api/query/explain: the database plan for the
// compiled statement. ?analyze executes the statement; ?verbose expands
// the plan detail.
func (h *Handler) Explain(w http.ResponseWriter, r *http.Request) {
	q := h.decodeQuery(w, r)
	if q == nil {
		return
	}
	b := h.builder()
	if !h.plan(w, b, q) {
		return
	}

	ctx, cancel := h.queryCtx(r)
	defer cancel()

	opts := backend.ExplainOptions{
		Analyze: boolParam(r, "analyze"),
		Verbose: boolParam(r, "verbose"),
	}
	planText, err := b.Analyze(ctx, q, opts)
	if err != nil {
		if errors.Is(err, planner.ErrUnsupportedDialect) {
			writeError(w, http.StatusNotImplemented, "UNSUPPORTED_DIALECT",
				"Plan analysis requires PostgreSQL", err.Error())
			return
		}
		writeExecError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"plan": planText})
}
