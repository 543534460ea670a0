// Package nl2sql turns a natural-language question into a SQL SELECT
// statement using schema context and retrieved exemplars.
package nl2sql

import (
	"context"
	"errors"
)

// ErrNoStatement is returned (under the "error" fallback policy) when no
// SELECT statement can be extracted from the model output.
var ErrNoStatement = errors.New("no SELECT statement in model output")

// DefaultStatement is substituted under the "default" fallback policy. It is
// deliberately unrelated to the question; the Fallback flag on the result is
// the only signal that extraction failed.
const DefaultStatement = "SELECT * FROM products LIMIT 5;"

type Request struct {
	Question   string   `json:"question"`
	SchemaText string   `json:"schema_text"`
	Exemplars  []string `json:"exemplars"`
}

type Result struct {
	SQL      string `json:"sql"`
	Model    string `json:"model"`
	Fallback bool   `json:"fallback"`
}

type Translator interface {
	Translate(ctx context.Context, req Request) (Result, error)
}
