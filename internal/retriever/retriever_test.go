package retriever

import (
	"context"
	"fmt"
	"testing"

	"github.com/askdb/askdb/internal/exemplar"
)

// stubEmbedder maps each known text to a fixed unit vector.
type stubEmbedder struct {
	vectors map[string][]float32
}

func (s *stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		vector, ok := s.vectors[text]
		if !ok {
			return nil, fmt.Errorf("no vector for %q", text)
		}
		out = append(out, vector)
	}
	return out, nil
}

func (s *stubEmbedder) Dimension() int { return 3 }

func newTestIndex(t *testing.T) (*Index, *stubEmbedder, *exemplar.Store) {
	t.Helper()
	store, err := exemplar.NewStore([]string{
		"SELECT COUNT(*) FROM products;",
		"SELECT name FROM products;",
		"SELECT AVG(price) FROM products;",
	})
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	embedder := &stubEmbedder{vectors: map[string][]float32{
		"SELECT COUNT(*) FROM products;":  {1, 0, 0},
		"SELECT name FROM products;":      {0, 1, 0},
		"SELECT AVG(price) FROM products;": {0, 0, 1},
		"how many products":               {0.9, 0.1, 0},
	}}
	index, err := BuildIndex(context.Background(), store, embedder)
	if err != nil {
		t.Fatalf("BuildIndex() error = %v", err)
	}
	return index, embedder, store
}

func TestBuildIndexAlignsWithStore(t *testing.T) {
	index, _, store := newTestIndex(t)
	if index.Len() != store.Len() {
		t.Fatalf("index size %d, store size %d", index.Len(), store.Len())
	}
}

func TestRetrieveOrdersByDecreasingSimilarity(t *testing.T) {
	index, embedder, _ := newTestIndex(t)
	r, err := New(embedder, index, 3)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	got, err := r.Retrieve(context.Background(), "how many products", 2)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(got) = %d", len(got))
	}
	if got[0] != "SELECT COUNT(*) FROM products;" {
		t.Fatalf("got[0] = %q", got[0])
	}
	if got[1] != "SELECT name FROM products;" {
		t.Fatalf("got[1] = %q", got[1])
	}
}

func TestRetrieveClampsKToCorpusSize(t *testing.T) {
	index, embedder, store := newTestIndex(t)
	r, err := New(embedder, index, 3)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	got, err := r.Retrieve(context.Background(), "how many products", 50)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(got) != store.Len() {
		t.Fatalf("len(got) = %d, want %d", len(got), store.Len())
	}
}

func TestRetrieveUsesDefaultKWhenUnset(t *testing.T) {
	index, embedder, _ := newTestIndex(t)
	r, err := New(embedder, index, 2)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	got, err := r.Retrieve(context.Background(), "how many products", 0)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(got) = %d", len(got))
	}
}

func TestRetrieveResultsAreStoreMembers(t *testing.T) {
	index, embedder, store := newTestIndex(t)
	r, err := New(embedder, index, 3)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	got, err := r.Retrieve(context.Background(), "how many products", 3)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	members := map[string]bool{}
	for _, example := range store.All() {
		members[example] = true
	}
	for _, text := range got {
		if !members[text] {
			t.Fatalf("retrieved %q is not a store member", text)
		}
	}
}

func TestBuildIndexRejectsMisalignedEmbedder(t *testing.T) {
	store, err := exemplar.NewStore([]string{"SELECT 1;", "SELECT 2;"})
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	short := &shortEmbedder{}
	if _, err := BuildIndex(context.Background(), store, short); err == nil {
		t.Fatal("BuildIndex() should reject vector/exemplar count mismatch")
	}
}

type shortEmbedder struct{}

func (s *shortEmbedder) Embed(_ context.Context, _ []string) ([][]float32, error) {
	return [][]float32{{1}}, nil
}

func (s *shortEmbedder) Dimension() int { return 1 }
