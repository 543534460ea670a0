// Package session drives an interactive question/answer conversation
// against one target table.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/askdb/askdb/internal/executor"
	"github.com/askdb/askdb/internal/nl2sql"
	"github.com/askdb/askdb/internal/observability"
)

type State string

const (
	StateDisconnected  State = "disconnected"
	StateTableSelected State = "table_selected"
	StateModelsLoaded  State = "models_loaded"
	StateReady         State = "ready"
)

var ErrNotConnected = errors.New("session is not connected to a table")

type Retriever interface {
	Retrieve(ctx context.Context, question string, k int) ([]string, error)
}

type Translator interface {
	Translate(ctx context.Context, req nl2sql.Request) (nl2sql.Result, error)
}

type Executor interface {
	Execute(ctx context.Context, sqlText string) (executor.Result, error)
}

type AuditLogger interface {
	Log(ctx context.Context, question, sqlText string)
}

// ModelLoader builds the retrieval and translation clients. It runs once,
// on the first question, so the shell starts without network round trips.
type ModelLoader func(ctx context.Context) (Retriever, Translator, error)

type Turn struct {
	Question  string
	Exemplars []string
	SQL       string
	Fallback  bool
	Result    executor.Result
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// HistoryEntry is one side of an exchange. Assistant entries carry the
// generated statement and its result rows.
type HistoryEntry struct {
	Role   Role
	Text   string
	SQL    string
	Result *executor.Result
}

type Session struct {
	logger *slog.Logger

	state      State
	table      string
	schemaText string

	loadModels ModelLoader
	retriever  Retriever
	translator Translator
	exec       Executor
	audit      AuditLogger

	history []HistoryEntry
}

func New(logger *slog.Logger, exec Executor, audit AuditLogger, loader ModelLoader) (*Session, error) {
	if exec == nil {
		return nil, fmt.Errorf("executor is required")
	}
	if loader == nil {
		return nil, fmt.Errorf("model loader is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		logger:     logger,
		state:      StateDisconnected,
		loadModels: loader,
		exec:       exec,
		audit:      audit,
	}, nil
}

func (s *Session) State() State {
	return s.state
}

func (s *Session) Table() string {
	return s.table
}

func (s *Session) History() []HistoryEntry {
	out := make([]HistoryEntry, len(s.history))
	copy(out, s.history)
	return out
}

// SelectTable records the table the conversation is scoped to together
// with its rendered schema text.
func (s *Session) SelectTable(table, schemaText string) error {
	table = strings.TrimSpace(table)
	if table == "" {
		return fmt.Errorf("table name is required")
	}
	if strings.TrimSpace(schemaText) == "" {
		return fmt.Errorf("schema text is required")
	}
	s.table = table
	s.schemaText = schemaText
	s.state = StateTableSelected
	s.logger.Info("table selected", slog.String("table", table))
	return nil
}

func (s *Session) ensureModels(ctx context.Context) error {
	if s.retriever != nil && s.translator != nil {
		if s.state == StateModelsLoaded {
			s.state = StateReady
		}
		return nil
	}
	retr, trans, err := s.loadModels(ctx)
	if err != nil {
		return fmt.Errorf("load models: %w", err)
	}
	s.retriever = retr
	s.translator = trans
	s.state = StateModelsLoaded
	s.logger.Info("models loaded")
	return nil
}

// Ask runs one full turn: retrieve exemplars, translate the question to
// SQL, record the pair in the audit log, then execute. The audit step
// never fails a turn.
func (s *Session) Ask(ctx context.Context, question string) (Turn, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Turn{}, fmt.Errorf("question is required")
	}
	if s.state == StateDisconnected {
		return Turn{}, ErrNotConnected
	}
	if err := s.ensureModels(ctx); err != nil {
		observability.RecordTurnFailure("warmup")
		return Turn{}, err
	}
	s.state = StateReady

	exemplars, err := s.retriever.Retrieve(ctx, question, 0)
	if err != nil {
		observability.RecordTurnFailure("retrieve")
		return Turn{}, fmt.Errorf("retrieve exemplars: %w", err)
	}

	generated, err := s.translator.Translate(ctx, nl2sql.Request{
		Question:   question,
		SchemaText: s.schemaText,
		Exemplars:  exemplars,
	})
	if err != nil {
		observability.RecordTurnFailure("generate")
		return Turn{}, fmt.Errorf("generate sql: %w", err)
	}

	if s.audit != nil {
		s.audit.Log(ctx, question, generated.SQL)
	}

	result, err := s.exec.Execute(ctx, generated.SQL)
	if err != nil {
		observability.RecordTurnFailure("execute")
		return Turn{}, fmt.Errorf("execute sql: %w", err)
	}

	turn := Turn{
		Question:  question,
		Exemplars: exemplars,
		SQL:       generated.SQL,
		Fallback:  generated.Fallback,
		Result:    result,
	}
	s.history = append(s.history,
		HistoryEntry{Role: RoleUser, Text: question},
		HistoryEntry{Role: RoleAssistant, Text: generated.SQL, SQL: generated.SQL, Result: &result},
	)
	observability.RecordTurn()
	s.logger.Info("turn completed",
		slog.String("table", s.table),
		slog.Int("rows", len(result.Rows)),
		slog.Bool("fallback", generated.Fallback),
	)
	return turn, nil
}
