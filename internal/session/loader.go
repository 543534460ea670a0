package session

import (
	"context"

	"github.com/askdb/askdb/internal/config"
	"github.com/askdb/askdb/internal/embedding"
	"github.com/askdb/askdb/internal/exemplar"
	"github.com/askdb/askdb/internal/nl2sql"
	"github.com/askdb/askdb/internal/retriever"
)

// NewModelLoader wires the embedding client, the exemplar index, and the
// chat translator from configuration. Building the index embeds every
// stored example, which is why the loader runs lazily.
func NewModelLoader(cfg config.Config) ModelLoader {
	return func(ctx context.Context) (Retriever, Translator, error) {
		embedder, err := embedding.NewClient(embedding.Config{
			BaseURL:   cfg.Embedding.BaseURL,
			APIKey:    cfg.Embedding.APIKey,
			Model:     cfg.Embedding.Model,
			Dimension: cfg.Embedding.Dimension,
			Timeout:   cfg.Embedding.Timeout,
		})
		if err != nil {
			return nil, nil, err
		}

		index, err := retriever.BuildIndex(ctx, exemplar.NewDefaultStore(), embedder)
		if err != nil {
			return nil, nil, err
		}
		retr, err := retriever.New(embedder, index, cfg.Retrieve.TopK)
		if err != nil {
			return nil, nil, err
		}

		translator, err := nl2sql.NewOpenAITranslator(nl2sql.OpenAIConfig{
			BaseURL:   cfg.AI.BaseURL,
			APIKey:    cfg.AI.APIKey,
			Model:     cfg.AI.Model,
			MaxTokens: cfg.AI.MaxTokens,
			Timeout:   cfg.AI.Timeout,
			Fallback:  cfg.AI.Fallback,
		})
		if err != nil {
			return nil, nil, err
		}

		return retr, translator, nil
	}
}
