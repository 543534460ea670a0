// Package retriever selects the exemplars most similar to a question using
// exact inner-product search over a small in-memory index.
package retriever

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/askdb/askdb/internal/exemplar"
	"github.com/askdb/askdb/internal/observability"
)

// Embedder produces unit-normalized vectors, so inner product equals cosine
// similarity.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// ScoredExemplar pairs an exemplar statement with its similarity score.
type ScoredExemplar struct {
	Text  string
	Score float64
}

// Index holds one vector per exemplar, positionally aligned with the store.
// It is built once per process; there is no incremental update path.
type Index struct {
	store   *exemplar.Store
	vectors [][]float32
}

func BuildIndex(ctx context.Context, store *exemplar.Store, embedder Embedder) (*Index, error) {
	if store == nil || store.Len() == 0 {
		return nil, fmt.Errorf("exemplar store is empty")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}

	vectors, err := embedder.Embed(ctx, store.All())
	if err != nil {
		return nil, fmt.Errorf("embed exemplars: %w", err)
	}
	if len(vectors) != store.Len() {
		return nil, fmt.Errorf("index misaligned: %d vectors for %d exemplars", len(vectors), store.Len())
	}
	return &Index{store: store, vectors: vectors}, nil
}

func (i *Index) Len() int {
	return len(i.vectors)
}

// Search returns the top-k exemplars by non-increasing inner product.
// k is clamped to the corpus size.
func (i *Index) Search(query []float32, k int) []ScoredExemplar {
	if k > len(i.vectors) {
		k = len(i.vectors)
	}
	if k <= 0 {
		return nil
	}

	scored := make([]ScoredExemplar, 0, len(i.vectors))
	for pos, vector := range i.vectors {
		scored = append(scored, ScoredExemplar{
			Text:  i.store.At(pos),
			Score: innerProduct(query, vector),
		})
	}
	sort.SliceStable(scored, func(a, b int) bool {
		return scored[a].Score > scored[b].Score
	})
	return scored[:k]
}

// Retriever embeds an incoming question with the same model used to build
// the index and searches it.
type Retriever struct {
	embedder Embedder
	index    *Index
	topK     int
}

func New(embedder Embedder, index *Index, topK int) (*Retriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if index == nil || index.Len() == 0 {
		return nil, fmt.Errorf("index is empty")
	}
	if topK <= 0 {
		topK = 3
	}
	return &Retriever{embedder: embedder, index: index, topK: topK}, nil
}

func (r *Retriever) Retrieve(ctx context.Context, question string, k int) ([]string, error) {
	if k <= 0 {
		k = r.topK
	}

	start := time.Now()
	vectors, err := r.embedder.Embed(ctx, []string{question})
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedding returned no vector")
	}

	results := r.index.Search(vectors[0], k)
	observability.ObserveRetrievalDuration(time.Since(start))

	texts := make([]string, 0, len(results))
	for _, result := range results {
		texts = append(texts, result.Text)
	}
	return texts, nil
}

func innerProduct(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
