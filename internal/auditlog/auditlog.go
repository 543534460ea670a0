// Package auditlog writes each (question, generated SQL) pair to a secondary
// logging database. Every failure is swallowed: audit logging must never
// break a conversation turn.
package auditlog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/askdb/askdb/internal/observability"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS query_logs (
	id BIGSERIAL PRIMARY KEY,
	question TEXT NOT NULL,
	generated_sql TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const insertSQL = `
INSERT INTO query_logs (question, generated_sql)
VALUES ($1, $2)`

const listSQL = `
SELECT id, question, generated_sql, created_at
FROM query_logs
ORDER BY id DESC
LIMIT $1`

type Entry struct {
	ID           int64     `json:"id"`
	Question     string    `json:"question"`
	GeneratedSQL string    `json:"generated_sql"`
	CreatedAt    time.Time `json:"created_at"`
}

type Logger struct {
	db     *sql.DB
	logger *slog.Logger

	mu      sync.Mutex
	ensured bool
}

func NewLogger(db *sql.DB, logger *slog.Logger) *Logger {
	return &Logger{db: db, logger: logger}
}

// EnsureSchema creates the query_logs table if it does not exist. The create
// is idempotent and runs at most once per process unless it fails, in which
// case the next Log call retries it.
func (l *Logger) EnsureSchema(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ensured {
		return nil
	}
	if _, err := l.db.ExecContext(ctx, createTableSQL); err != nil {
		return fmt.Errorf("ensure query_logs table: %w", err)
	}
	l.ensured = true
	return nil
}

// Log inserts one audit row with a server-assigned timestamp. Empty inputs
// are skipped. Never returns an error: failures are logged as warnings and
// counted, and the turn continues.
func (l *Logger) Log(ctx context.Context, question, sqlText string) {
	question = strings.TrimSpace(question)
	sqlText = strings.TrimSpace(sqlText)
	if question == "" || sqlText == "" {
		return
	}

	if err := l.EnsureSchema(ctx); err != nil {
		l.warn(ctx, err)
		return
	}
	if _, err := l.db.ExecContext(ctx, insertSQL, question, sqlText); err != nil {
		l.warn(ctx, fmt.Errorf("insert audit row: %w", err))
	}
}

// List returns the most recent audit entries, newest first.
func (l *Logger) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := l.db.QueryContext(ctx, listSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit rows: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries := make([]Entry, 0)
	for rows.Next() {
		var entry Entry
		if err := rows.Scan(&entry.ID, &entry.Question, &entry.GeneratedSQL, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit row: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit rows: %w", err)
	}
	return entries, nil
}

func (l *Logger) warn(ctx context.Context, err error) {
	observability.RecordAuditFailure()
	if l.logger != nil {
		l.logger.WarnContext(ctx, "audit log write failed", slog.Any("error", err))
	}
}
