// Package exemplar holds the fixed set of reference SQL statements used as
// few-shot examples when prompting the generation model.
package exemplar

import (
	"fmt"
	"strings"
)

// defaultExamples is the canonical exemplar set. Statement order is load-bearing:
// the embedding index is aligned to it positionally.
var defaultExamples = []string{
	"SELECT COUNT(*) FROM products;",
	"SELECT name, price FROM products ORDER BY price DESC LIMIT 10;",
	"SELECT category, AVG(price) FROM products GROUP BY category;",
	"SELECT * FROM products WHERE price > 100;",
	"SELECT name FROM products WHERE stock = 0;",
}

// Store is an immutable ordered collection of exemplar statements.
type Store struct {
	examples []string
}

func NewDefaultStore() *Store {
	store, err := NewStore(defaultExamples)
	if err != nil {
		// The built-in set is non-empty; reaching this is a programming error.
		panic(err)
	}
	return store
}

func NewStore(examples []string) (*Store, error) {
	cleaned := make([]string, 0, len(examples))
	for i, example := range examples {
		trimmed := strings.TrimSpace(example)
		if trimmed == "" {
			return nil, fmt.Errorf("exemplar %d is empty", i)
		}
		cleaned = append(cleaned, trimmed)
	}
	if len(cleaned) == 0 {
		return nil, fmt.Errorf("at least one exemplar is required")
	}
	return &Store{examples: cleaned}, nil
}

// All returns a copy so callers cannot mutate the store.
func (s *Store) All() []string {
	out := make([]string, len(s.examples))
	copy(out, s.examples)
	return out
}

func (s *Store) Len() int {
	return len(s.examples)
}

func (s *Store) At(i int) string {
	return s.examples[i]
}
