package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/askdb/askdb/internal/schema"
)

type schemaColumn struct {
	Name     string `json:"name"`
	DataType string `json:"data_type"`
}

type schemaResponse struct {
	Table   string         `json:"table"`
	Columns []schemaColumn `json:"columns"`
	Text    string         `json:"text"`
}

func handleSchema(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Schema == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SCHEMA_NOT_CONFIGURED", "schema dependency is not configured", false, nil)
		return
	}
	if err := requireRole(r, "chat_user"); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	table := strings.TrimSpace(r.URL.Query().Get("table"))
	if table == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "TABLE_REQUIRED", "table query parameter is required", false, nil)
		return
	}

	desc, err := deps.Schema.Describe(r.Context(), table)
	if errors.Is(err, schema.ErrTableNotFound) {
		writeError(r.Context(), w, http.StatusNotFound, "TABLE_NOT_FOUND", "table not found", false, map[string]any{"table": table})
		return
	}
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "SCHEMA_FETCH_FAILED", "failed to introspect table", true, map[string]any{"details": err.Error()})
		return
	}

	columns := make([]schemaColumn, 0, len(desc.Columns))
	for _, column := range desc.Columns {
		columns = append(columns, schemaColumn{Name: column.Name, DataType: column.Type})
	}
	writeJSON(w, http.StatusOK, schemaResponse{Table: desc.Table, Columns: columns, Text: desc.Text()})
}
