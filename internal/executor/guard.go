package executor

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrNotReadOnly rejects statements outside the SELECT allow-list.
var ErrNotReadOnly = errors.New("statement is not a read-only SELECT")

var (
	lineCommentPattern  = regexp.MustCompile(`--[^\n]*`)
	blockCommentPattern = regexp.MustCompile(`(?s)/\*.*?\*/`)
)

// CheckReadOnly enforces the execution allow-list: after comment stripping
// the text must be a single statement whose leading keyword is SELECT or
// WITH. This is a keyword gate, not a parser; it does not validate that the
// statement is syntactically complete.
func CheckReadOnly(sqlText string) error {
	stripped := blockCommentPattern.ReplaceAllString(sqlText, " ")
	stripped = lineCommentPattern.ReplaceAllString(stripped, " ")
	stripped = strings.TrimSpace(stripped)
	if stripped == "" {
		return fmt.Errorf("empty statement: %w", ErrNotReadOnly)
	}

	body := strings.TrimSuffix(stripped, ";")
	if strings.Contains(body, ";") {
		return fmt.Errorf("multiple statements: %w", ErrNotReadOnly)
	}

	fields := strings.Fields(strings.ToUpper(body))
	if len(fields) == 0 {
		return fmt.Errorf("empty statement: %w", ErrNotReadOnly)
	}
	switch fields[0] {
	case "SELECT", "WITH":
		return nil
	default:
		return fmt.Errorf("leading keyword %s: %w", fields[0], ErrNotReadOnly)
	}
}
