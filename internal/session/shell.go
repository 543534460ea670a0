package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/askdb/askdb/internal/auditlog"
	"github.com/askdb/askdb/internal/config"
	"github.com/askdb/askdb/internal/database"
	"github.com/askdb/askdb/internal/executor"
	"github.com/askdb/askdb/internal/schema"
)

type Options struct {
	Config config.Config
	Logger *slog.Logger
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Run drives the interactive shell from connect to exit and returns a
// process exit code.
func Run(ctx context.Context, opts Options) int {
	stdout := opts.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := opts.Stderr
	if stderr == nil {
		stderr = io.Discard
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	scanner := bufio.NewScanner(opts.Stdin)
	cfg := opts.Config

	_, _ = fmt.Fprintln(stdout, "askdb interactive shell. Type a question, or \"exit\" to quit.")

	dsn := strings.TrimSpace(cfg.Target.DSN)
	if dsn == "" && cfg.Target.Driver == "pgx" {
		connected, ok := promptConnection(scanner, stdout)
		if !ok {
			return 1
		}
		dsn = connected
	}

	db, err := database.Open(ctx, database.Config{
		Driver:          cfg.Target.Driver,
		DSN:             dsn,
		MaxOpenConns:    cfg.Target.MaxOpenConns,
		MaxIdleConns:    cfg.Target.MaxIdleConns,
		ConnMaxIdleTime: cfg.Target.ConnMaxIdleTime,
		ConnMaxLifetime: cfg.Target.ConnMaxLifetime,
	})
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "connect failed: %v\n", err)
		return 1
	}
	defer func() { _ = db.Close() }()
	logger.Info("connected to target database", slog.String("driver", cfg.Target.Driver))

	intro := schema.NewIntrospector(db)
	desc, ok := promptTable(ctx, scanner, stdout, stderr, intro, cfg.Target.Table)
	if !ok {
		return 1
	}
	if desc.Table == "" {
		return 0
	}

	var audit AuditLogger
	if cfg.Audit.Enabled && strings.TrimSpace(cfg.Audit.DSN) != "" {
		auditDB, err := database.Open(ctx, database.Config{Driver: "pgx", DSN: cfg.Audit.DSN})
		if err != nil {
			logger.Warn("audit database unavailable, logging disabled", slog.Any("error", err))
		} else {
			defer func() { _ = auditDB.Close() }()
			auditLogger := auditlog.NewLogger(auditDB, logger)
			if err := auditLogger.EnsureSchema(ctx); err != nil {
				logger.Warn("audit schema setup failed", slog.Any("error", err))
			}
			audit = auditLogger
		}
	}

	sess, err := New(logger, executor.New(db), audit, NewModelLoader(cfg))
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "session setup failed: %v\n", err)
		return 1
	}
	if err := sess.SelectTable(desc.Table, desc.Text()); err != nil {
		_, _ = fmt.Fprintf(stderr, "session setup failed: %v\n", err)
		return 1
	}

	return runLoop(ctx, sess, scanner, stdout, stderr)
}

func runLoop(ctx context.Context, sess *Session, scanner *bufio.Scanner, stdout, stderr io.Writer) int {
	for {
		_, _ = fmt.Fprintf(stdout, "askdb(%s)> ", sess.Table())
		if !scanner.Scan() {
			_, _ = fmt.Fprintln(stdout)
			return 0
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.EqualFold(line, "exit") {
			return 0
		}

		turn, err := sess.Ask(ctx, line)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "error: %v\n", err)
			continue
		}
		renderTurn(stdout, turn)
	}
}

func renderTurn(w io.Writer, turn Turn) {
	_, _ = fmt.Fprintf(w, "sql: %s\n", turn.SQL)
	if turn.Fallback {
		_, _ = fmt.Fprintln(w, "(used fallback statement)")
	}
	if len(turn.Result.Columns) > 0 {
		_, _ = fmt.Fprintln(w, strings.Join(turn.Result.Columns, " | "))
	}
	for _, row := range turn.Result.Rows {
		cells := make([]string, len(row))
		for i, value := range row {
			if value == nil {
				cells[i] = "NULL"
				continue
			}
			cells[i] = fmt.Sprint(value)
		}
		_, _ = fmt.Fprintln(w, strings.Join(cells, " | "))
	}
	_, _ = fmt.Fprintf(w, "(%d rows in %s)\n", len(turn.Result.Rows), turn.Result.Duration.Round(time.Millisecond))
}

func promptConnection(scanner *bufio.Scanner, out io.Writer) (string, bool) {
	host, ok := promptLine(scanner, out, "host", "localhost")
	if !ok {
		return "", false
	}
	port, ok := promptLine(scanner, out, "port", "5432")
	if !ok {
		return "", false
	}
	user, ok := promptLine(scanner, out, "user", "postgres")
	if !ok {
		return "", false
	}
	password, ok := promptLine(scanner, out, "password", "")
	if !ok {
		return "", false
	}
	dbname, ok := promptLine(scanner, out, "database", "postgres")
	if !ok {
		return "", false
	}
	return database.BuildPostgresDSN(host, port, user, password, dbname), true
}

// promptTable asks for a table name until one exists. Returning an empty
// description with ok means the user typed exit.
func promptTable(ctx context.Context, scanner *bufio.Scanner, stdout, stderr io.Writer, intro *schema.Introspector, fallback string) (schema.Description, bool) {
	for {
		table, ok := promptLine(scanner, stdout, "table", fallback)
		if !ok {
			return schema.Description{}, false
		}
		if table == "" {
			_, _ = fmt.Fprintln(stderr, "table name is required")
			continue
		}
		if strings.EqualFold(table, "exit") {
			return schema.Description{}, true
		}

		desc, err := intro.Describe(ctx, table)
		if errors.Is(err, schema.ErrTableNotFound) {
			_, _ = fmt.Fprintf(stderr, "table %q not found\n", table)
			fallback = ""
			continue
		}
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "describe table: %v\n", err)
			return schema.Description{}, false
		}
		_, _ = fmt.Fprintln(stdout, desc.Text())
		return desc, true
	}
}

func promptLine(scanner *bufio.Scanner, out io.Writer, label, fallback string) (string, bool) {
	if fallback != "" {
		_, _ = fmt.Fprintf(out, "%s [%s]: ", label, fallback)
	} else {
		_, _ = fmt.Fprintf(out, "%s: ", label)
	}
	if !scanner.Scan() {
		return "", false
	}
	line := strings.TrimSpace(scanner.Text())
	if line == "" {
		return fallback, true
	}
	return line, true
}
