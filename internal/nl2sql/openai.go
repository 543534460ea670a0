package nl2sql

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/askdb/askdb/internal/config"
	"github.com/askdb/askdb/internal/observability"
)

type OpenAIConfig struct {
	BaseURL   string
	APIKey    string
	Model     string
	MaxTokens int
	Timeout   time.Duration
	Fallback  config.FallbackPolicy
}

type OpenAITranslator struct {
	baseURL   string
	apiKey    string
	model     string
	maxTokens int
	fallback  config.FallbackPolicy
	client    *http.Client
}

func NewOpenAITranslator(cfg OpenAIConfig) (*OpenAITranslator, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("api key is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gpt-4o-mini"
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 256
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	fallback := cfg.Fallback
	if fallback == "" {
		fallback = config.FallbackDefault
	}
	return &OpenAITranslator{
		baseURL:   strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:    strings.TrimSpace(cfg.APIKey),
		model:     model,
		maxTokens: maxTokens,
		fallback:  fallback,
		client:    &http.Client{Timeout: timeout},
	}, nil
}

func (t *OpenAITranslator) Translate(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.Question) == "" {
		return Result{}, fmt.Errorf("question is required")
	}

	body, err := json.Marshal(buildChatPayload(t.model, t.maxTokens, req))
	if err != nil {
		return Result{}, fmt.Errorf("marshal chat payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("request chat completion: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	rawBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("read chat response body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return Result{}, fmt.Errorf("chat completion failed status=%d body=%s", resp.StatusCode, string(rawBody))
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(rawBody, &parsed); err != nil {
		return Result{}, fmt.Errorf("decode chat completion response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return Result{}, fmt.Errorf("empty chat completion choices")
	}

	sqlText, ok := ExtractSelect(parsed.Choices[0].Message.Content)
	if !ok {
		if t.fallback == config.FallbackError {
			return Result{}, ErrNoStatement
		}
		observability.RecordGenerationFallback()
		return Result{SQL: DefaultStatement, Model: t.model, Fallback: true}, nil
	}
	return Result{SQL: sqlText, Model: t.model}, nil
}

// buildChatPayload renders the deterministic prompt: schema block, exemplars
// in retrieval order, then the raw question. Temperature is pinned to zero
// so decoding is greedy.
func buildChatPayload(model string, maxTokens int, req Request) map[string]any {
	systemPrompt := "You convert natural language questions into a single SQL SELECT statement " +
		"against the table described below. " +
		"Return ONLY SQL terminated by a semicolon. No markdown, no explanation."

	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(req.SchemaText))
	sb.WriteString("\n\nExample queries:\n")
	sb.WriteString(strings.Join(req.Exemplars, "\n"))
	sb.WriteString("\n\nQuestion:\n")
	sb.WriteString(strings.TrimSpace(req.Question))

	return map[string]any{
		"model": model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": sb.String()},
		},
		"temperature": 0,
		"max_tokens":  maxTokens,
	}
}

// selectPattern matches the first SELECT ... ; in the output, spanning
// newlines, case-insensitively.
var selectPattern = regexp.MustCompile(`(?is)\bselect\b.*?;`)

// ExtractSelect returns the first SELECT statement in raw model output, or
// false when none is present.
func ExtractSelect(raw string) (string, bool) {
	match := selectPattern.FindString(raw)
	if match == "" {
		return "", false
	}
	return strings.TrimSpace(match), true
}
