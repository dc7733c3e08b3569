package graph

import (
	"encoding/json"
	"fmt"
	"net/http"

	graphql "github.com/graph-gophers/graphql-go"
	"github.com/muneebhashone/gqlauth/internal/logging"
	"github.com/muneebhashone/gqlauth/internal/server/authctx"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

const maxRequestBody = 1 << 20

// ContextResolver builds the execution context of an operation.
type ContextResolver interface {
	Resolve(r *http.Request) *authctx.ExecutionContext
}

// Request is a GraphQL-over-HTTP request.
type Request struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName"`
	Variables     map[string]any `json:"variables"`
}

// Handler serves queries and mutations over HTTP.
type Handler struct {
	schema   *graphql.Schema
	resolver ContextResolver
	logger   logging.Logger
}

func NewHandler(schema *graphql.Schema, resolver ContextResolver, logger logging.Logger) *Handler {
	return &Handler{schema: schema, resolver: resolver, logger: logger.With("module", "graphql")}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if r.Method == http.MethodGet && !isQuery(req) {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("only query operations are allowed over GET"))
		return
	}

	ec := h.resolver.Resolve(r)
	ctx := authctx.With(logging.WithAuthMode(r.Context(), string(ec.Mode)), ec)

	resp := h.schema.Exec(ctx, req.Query, req.OperationName, req.Variables)
	if len(resp.Errors) > 0 {
		h.logger.Debug(ctx, "operation returned errors", "operation", req.OperationName, "errors", len(resp.Errors))
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func decodeRequest(r *http.Request) (Request, error) {
	var req Request
	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		req.Query = q.Get("query")
		req.OperationName = q.Get("operationName")
		if v := q.Get("variables"); v != "" {
			if err := json.Unmarshal([]byte(v), &req.Variables); err != nil {
				return req, fmt.Errorf("invalid variables: %w", err)
			}
		}
	case http.MethodPost:
		if err := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxRequestBody)).Decode(&req); err != nil {
			return req, fmt.Errorf("invalid request body: %w", err)
		}
	default:
		return req, fmt.Errorf("method %s not allowed", r.Method)
	}
	if req.Query == "" {
		return req, fmt.Errorf("query is required")
	}
	return req, nil
}

// isQuery reports whether the selected operation is a query. Documents that
// do not parse or select nothing are left for Exec to report.
func isQuery(req Request) bool {
	doc, err := parser.ParseQuery(&ast.Source{Input: req.Query})
	if err != nil {
		return true
	}
	op := doc.Operations.ForName(req.OperationName)
	if op == nil {
		return true
	}
	return op.Operation == ast.Query
}

type errorMessage struct {
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string][]errorMessage{
		"errors": {{Message: err.Error()}},
	})
}
