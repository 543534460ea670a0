package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

type auditRecentResponse struct {
	Entries []auditEntry `json:"entries"`
}

type auditEntry struct {
	ID           int64     `json:"id"`
	Question     string    `json:"question"`
	GeneratedSQL string    `json:"generated_sql"`
	CreatedAt    time.Time `json:"created_at"`
}

type archiveResponse struct {
	Key  string `json:"key"`
	Size int64  `json:"size_bytes"`
	ETag string `json:"etag,omitempty"`
}

func handleAuditRecent(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Audit == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "AUDIT_NOT_CONFIGURED", "audit log is not configured", false, nil)
		return
	}
	if err := requireRole(r, "audit_reader"); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(r.Context(), w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be a positive integer", false, nil)
			return
		}
		limit = parsed
	}

	entries, err := deps.Audit.List(r.Context(), limit)
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "AUDIT_LIST_FAILED", "failed to list audit entries", true, map[string]any{"details": err.Error()})
		return
	}

	payload := auditRecentResponse{Entries: make([]auditEntry, 0, len(entries))}
	for _, entry := range entries {
		payload.Entries = append(payload.Entries, auditEntry{
			ID:           entry.ID,
			Question:     entry.Question,
			GeneratedSQL: entry.GeneratedSQL,
			CreatedAt:    entry.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, payload)
}

func handleAuditArchive(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Archiver == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "ARCHIVE_NOT_CONFIGURED", "audit archiving is not configured", false, nil)
		return
	}
	if err := requireRole(r, "audit_reader"); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(r.Context(), w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be a positive integer", false, nil)
			return
		}
		limit = parsed
	}

	info, err := deps.Archiver.ArchiveRecent(r.Context(), limit, time.Now())
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "ARCHIVE_FAILED", "audit archive failed", true, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, archiveResponse{Key: info.Key, Size: info.Size, ETag: info.ETag})
}
