package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/askdb/askdb/internal/executor"
	"github.com/askdb/askdb/internal/nl2sql"
	"github.com/askdb/askdb/internal/schema"
)

func productsSchema() *stubSchema {
	return &stubSchema{desc: schema.Description{
		Table: "products",
		Columns: []schema.Column{
			{Name: "id", Type: "bigint"},
			{Name: "name", Type: "text"},
		},
	}}
}

func TestTranslateEndpoint(t *testing.T) {
	h := NewHandler(testConfig(t, nil), Dependencies{
		Schema:     productsSchema(),
		Retriever:  &stubRetriever{exemplars: []string{"SELECT COUNT(*) FROM products;"}},
		Translator: &stubTranslator{result: nl2sql.Result{SQL: "SELECT name FROM products;", Model: "gpt-4o-mini"}},
	})

	body := strings.NewReader(`{"question":"list product names","table":"products"}`)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/translate", body))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}

	var resp translateResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.SQL != "SELECT name FROM products;" {
		t.Fatalf("sql = %q", resp.SQL)
	}
	if len(resp.Exemplars) != 1 {
		t.Fatalf("exemplars = %v", resp.Exemplars)
	}
}

func TestTranslateRequiresQuestion(t *testing.T) {
	h := NewHandler(testConfig(t, nil), Dependencies{
		Schema:     productsSchema(),
		Retriever:  &stubRetriever{},
		Translator: &stubTranslator{},
	})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/translate", strings.NewReader(`{"table":"products"}`)))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestTranslateUsesConfiguredDefaultTable(t *testing.T) {
	cfg := testConfig(t, map[string]string{"ASKDB_TARGET_TABLE": "products"})
	h := NewHandler(cfg, Dependencies{
		Schema:     productsSchema(),
		Retriever:  &stubRetriever{},
		Translator: &stubTranslator{result: nl2sql.Result{SQL: "SELECT 1;"}},
	})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/translate", strings.NewReader(`{"question":"anything"}`)))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
}

func TestTranslateReports422WhenNoStatement(t *testing.T) {
	h := NewHandler(testConfig(t, nil), Dependencies{
		Schema:     productsSchema(),
		Retriever:  &stubRetriever{},
		Translator: &stubTranslator{err: nl2sql.ErrNoStatement},
	})

	body := strings.NewReader(`{"question":"q","table":"products"}`)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/translate", body))
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestTranslateReports502OnTranslatorFailure(t *testing.T) {
	h := NewHandler(testConfig(t, nil), Dependencies{
		Schema:     productsSchema(),
		Retriever:  &stubRetriever{},
		Translator: &stubTranslator{err: errors.New("model endpoint timed out")},
	})

	body := strings.NewReader(`{"question":"q","table":"products"}`)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/translate", body))
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadGateway)
	}

	var envelope map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	if envelope["error_code"] != "TRANSLATION_FAILED" {
		t.Fatalf("error_code = %v", envelope["error_code"])
	}
	if envelope["retryable"] != true {
		t.Fatalf("retryable = %v", envelope["retryable"])
	}
}

func TestChatReports502OnRetrieverFailure(t *testing.T) {
	audit := &stubAudit{}
	h := NewHandler(testConfig(t, nil), Dependencies{
		Schema:     productsSchema(),
		Retriever:  &stubRetriever{err: errors.New("embedding endpoint down")},
		Translator: &stubTranslator{},
		Executor:   &stubExecutor{},
		Audit:      audit,
	})

	body := strings.NewReader(`{"question":"q","table":"products"}`)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/chat", body))
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadGateway)
	}

	var envelope map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	if envelope["error_code"] != "RETRIEVAL_FAILED" {
		t.Fatalf("error_code = %v", envelope["error_code"])
	}
	if audit.logged != 0 {
		t.Fatalf("audit logged %d times, want 0", audit.logged)
	}
}

func TestChatReports502OnTranslatorFailure(t *testing.T) {
	h := NewHandler(testConfig(t, nil), Dependencies{
		Schema:     productsSchema(),
		Retriever:  &stubRetriever{},
		Translator: &stubTranslator{err: errors.New("model endpoint timed out")},
		Executor:   &stubExecutor{},
	})

	body := strings.NewReader(`{"question":"q","table":"products"}`)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/chat", body))
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadGateway)
	}
}

func TestChatEndpointRunsFullTurn(t *testing.T) {
	audit := &stubAudit{}
	h := NewHandler(testConfig(t, nil), Dependencies{
		Schema:     productsSchema(),
		Retriever:  &stubRetriever{exemplars: []string{"SELECT COUNT(*) FROM products;"}},
		Translator: &stubTranslator{result: nl2sql.Result{SQL: "SELECT name FROM products;"}},
		Executor: &stubExecutor{result: executor.Result{
			Columns:  []string{"name"},
			Rows:     [][]any{{"widget"}},
			Duration: 8 * time.Millisecond,
		}},
		Audit: audit,
	})

	body := strings.NewReader(`{"question":"list product names","table":"products"}`)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/chat", body))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}

	var resp chatResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.SQL != "SELECT name FROM products;" {
		t.Fatalf("sql = %q", resp.SQL)
	}
	if len(resp.Rows) != 1 || len(resp.Columns) != 1 {
		t.Fatalf("unexpected result %+v", resp)
	}
	if audit.logged != 1 {
		t.Fatalf("audit logged %d times, want 1", audit.logged)
	}
}

func TestChatAuditsBeforeFailedExecution(t *testing.T) {
	audit := &stubAudit{}
	h := NewHandler(testConfig(t, nil), Dependencies{
		Schema:     productsSchema(),
		Retriever:  &stubRetriever{},
		Translator: &stubTranslator{result: nl2sql.Result{SQL: "SELECT nope FROM products;"}},
		Executor:   &stubExecutor{err: errors.New("column does not exist")},
		Audit:      audit,
	})

	body := strings.NewReader(`{"question":"q","table":"products"}`)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/chat", body))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
	if audit.logged != 1 {
		t.Fatalf("audit logged %d times, want 1", audit.logged)
	}
}

func TestChatRejectsNonReadOnlyStatement(t *testing.T) {
	h := NewHandler(testConfig(t, nil), Dependencies{
		Schema:     productsSchema(),
		Retriever:  &stubRetriever{},
		Translator: &stubTranslator{result: nl2sql.Result{SQL: "DROP TABLE products;"}},
		Executor:   &stubExecutor{err: executor.ErrNotReadOnly},
	})

	body := strings.NewReader(`{"question":"q","table":"products"}`)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/chat", body))
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestChatUnknownTableReturns404(t *testing.T) {
	h := NewHandler(testConfig(t, nil), Dependencies{
		Schema:     &stubSchema{err: schema.ErrTableNotFound},
		Retriever:  &stubRetriever{},
		Translator: &stubTranslator{},
		Executor:   &stubExecutor{},
	})

	body := strings.NewReader(`{"question":"q","table":"nope"}`)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/chat", body))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rr.Code)
	}
}
