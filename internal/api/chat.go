package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/askdb/askdb/internal/config"
	"github.com/askdb/askdb/internal/executor"
	"github.com/askdb/askdb/internal/nl2sql"
	"github.com/askdb/askdb/internal/schema"
)

type translateRequest struct {
	Question string `json:"question"`
	Table    string `json:"table"`
	TopK     int    `json:"top_k"`
}

type translateResponse struct {
	SQL       string   `json:"sql"`
	Model     string   `json:"model"`
	Fallback  bool     `json:"fallback"`
	Exemplars []string `json:"exemplars"`
}

type chatResponse struct {
	SQL        string   `json:"sql"`
	Fallback   bool     `json:"fallback"`
	Columns    []string `json:"columns"`
	Rows       [][]any  `json:"rows"`
	DurationMs int64    `json:"duration_ms"`
}

// prepareStatement runs the shared retrieve and translate steps of the
// translate and chat endpoints. A written response is signalled by ok=false.
func prepareStatement(deps Dependencies, w http.ResponseWriter, r *http.Request, question, table string, topK int) (nl2sql.Result, []string, bool) {
	desc, err := deps.Schema.Describe(r.Context(), table)
	if errors.Is(err, schema.ErrTableNotFound) {
		writeError(r.Context(), w, http.StatusNotFound, "TABLE_NOT_FOUND", "table not found", false, map[string]any{"table": table})
		return nl2sql.Result{}, nil, false
	}
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "SCHEMA_FETCH_FAILED", "failed to introspect table", true, map[string]any{"details": err.Error()})
		return nl2sql.Result{}, nil, false
	}

	exemplars, err := deps.Retriever.Retrieve(r.Context(), question, topK)
	if err != nil {
		writeError(r.Context(), w, http.StatusBadGateway, "RETRIEVAL_FAILED", "failed to retrieve example queries", true, map[string]any{"details": err.Error()})
		return nl2sql.Result{}, nil, false
	}

	result, err := deps.Translator.Translate(r.Context(), nl2sql.Request{
		Question:   question,
		SchemaText: desc.Text(),
		Exemplars:  exemplars,
	})
	if errors.Is(err, nl2sql.ErrNoStatement) {
		writeError(r.Context(), w, http.StatusUnprocessableEntity, "NO_STATEMENT", "model output contained no SELECT statement", false, nil)
		return nl2sql.Result{}, nil, false
	}
	if err != nil {
		writeError(r.Context(), w, http.StatusBadGateway, "TRANSLATION_FAILED", "sql generation failed", true, map[string]any{"details": err.Error()})
		return nl2sql.Result{}, nil, false
	}
	return result, exemplars, true
}

func decodeTranslateRequest(cfg config.Config, w http.ResponseWriter, r *http.Request) (translateRequest, bool) {
	var req translateRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid request body", false, map[string]any{"details": err.Error()})
		return translateRequest{}, false
	}
	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "QUESTION_REQUIRED", "question is required", false, nil)
		return translateRequest{}, false
	}
	req.Table = strings.TrimSpace(req.Table)
	if req.Table == "" {
		req.Table = cfg.Target.Table
	}
	if req.Table == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "TABLE_REQUIRED", "table is required", false, nil)
		return translateRequest{}, false
	}
	return req, true
}

func handleTranslate(cfg config.Config, deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Schema == nil || deps.Retriever == nil || deps.Translator == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "TRANSLATE_NOT_CONFIGURED", "translation dependencies are not configured", false, nil)
		return
	}
	if err := requireRole(r, "chat_user"); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	req, ok := decodeTranslateRequest(cfg, w, r)
	if !ok {
		return
	}

	result, exemplars, ok := prepareStatement(deps, w, r, req.Question, req.Table, req.TopK)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, translateResponse{
		SQL:       result.SQL,
		Model:     result.Model,
		Fallback:  result.Fallback,
		Exemplars: exemplars,
	})
}

func handleChat(cfg config.Config, deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Schema == nil || deps.Retriever == nil || deps.Translator == nil || deps.Executor == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "CHAT_NOT_CONFIGURED", "chat dependencies are not configured", false, nil)
		return
	}
	if err := requireRole(r, "chat_user"); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	req, ok := decodeTranslateRequest(cfg, w, r)
	if !ok {
		return
	}

	result, _, ok := prepareStatement(deps, w, r, req.Question, req.Table, req.TopK)
	if !ok {
		return
	}

	if deps.Audit != nil {
		deps.Audit.Log(r.Context(), req.Question, result.SQL)
	}

	execResult, err := deps.Executor.Execute(r.Context(), result.SQL)
	if errors.Is(err, executor.ErrNotReadOnly) {
		writeError(r.Context(), w, http.StatusUnprocessableEntity, "SQL_NOT_ALLOWED", "generated statement is not read-only", false, map[string]any{"sql": result.SQL})
		return
	}
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "QUERY_EXECUTION_FAILED", "query execution failed", false, map[string]any{"details": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{
		SQL:        result.SQL,
		Fallback:   result.Fallback,
		Columns:    execResult.Columns,
		Rows:       execResult.Rows,
		DurationMs: execResult.Duration.Milliseconds(),
	})
}
