package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"docqa/internal/ingestion"
	"docqa/internal/rag"
	"docqa/internal/rag/agent"
	"docqa/internal/rag/memory"
	"docqa/pkg/config"
)

type fixedStore struct {
	results []rag.ScoredChunk
}

func (s *fixedStore) Search(ctx context.Context, query string, k int) ([]rag.ScoredChunk, error) {
	return s.results, nil
}

func (s *fixedStore) Store(ctx context.Context, chunks []rag.Chunk, embeddings [][]float32) error {
	return nil
}

func (s *fixedStore) Clear(ctx context.Context) error { return nil }

func (s *fixedStore) Count(ctx context.Context) (int, error) { return len(s.results), nil }

type fixedGenerator struct{ answer string }

func (g *fixedGenerator) Complete(ctx context.Context, messages []rag.Message) (string, error) {
	return g.answer, nil
}

type fixedEmbedder struct{}

func (fixedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0}, nil
}

func (fixedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func newTestMux(store *fixedStore) *http.ServeMux {
	qaAgent := agent.New(
		store,
		&fixedGenerator{answer: "the answer"},
		memory.NewSessionStore(5, 100),
		config.RetrievalConfig{},
		config.MemoryConfig{RenderTurns: 6},
		agent.Options{},
	)
	ingest := ingestion.NewService(fixedEmbedder{}, store, config.IngestionConfig{
		ChunkSize:         1000,
		ChunkOverlap:      200,
		MaxDocumentBytes:  1 << 20,
		AllowedExtensions: []string{".txt"},
	}, ingestion.Options{})

	mux := http.NewServeMux()
	NewHandler(qaAgent, ingest, nil).RegisterRoutes(mux)
	return mux
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestHandleQuery_EmptyQuestionRejected(t *testing.T) {
	mux := newTestMux(&fixedStore{})

	for _, body := range []string{`{}`, `{"question":"   "}`} {
		rec := doJSON(t, mux, http.MethodPost, "/api/v1/query", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %s: status = %d, want 400", body, rec.Code)
		}
	}
}

func TestHandleQuery_MalformedBodyRejected(t *testing.T) {
	mux := newTestMux(&fixedStore{})
	rec := doJSON(t, mux, http.MethodPost, "/api/v1/query", `{"question":`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleQuery_AnswersWithResult(t *testing.T) {
	store := &fixedStore{results: []rag.ScoredChunk{
		{Chunk: rag.Chunk{ID: "c1", Content: "content", Source: "doc.txt"}, Distance: 0.2},
	}}
	mux := newTestMux(store)

	rec := doJSON(t, mux, http.MethodPost, "/api/v1/query", `{"question":"what?","session_id":"s1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var result rag.QueryResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatal(err)
	}
	if result.Answer != "the answer" {
		t.Errorf("answer = %q", result.Answer)
	}
	if result.SessionID != "s1" {
		t.Errorf("session id = %q", result.SessionID)
	}
	if result.RetrievedCount != 1 {
		t.Errorf("retrieved count = %d", result.RetrievedCount)
	}
}

func TestHandleQuery_NoResultStillOK(t *testing.T) {
	mux := newTestMux(&fixedStore{})

	rec := doJSON(t, mux, http.MethodPost, "/api/v1/query", `{"question":"anything"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("no-result path must be 200, got %d", rec.Code)
	}
	var result rag.QueryResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatal(err)
	}
	if result.Confidence != 0 || result.RetrievedCount != 0 {
		t.Errorf("unexpected no-result shape: %+v", result)
	}
}

func TestHandleIngest_CreatedAndListed(t *testing.T) {
	mux := newTestMux(&fixedStore{})

	rec := doJSON(t, mux, http.MethodPost, "/api/v1/documents", `{"filename":"notes.txt","content":"hello chunked world"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var result ingestion.IngestResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatal(err)
	}
	if result.ChunkCount != 1 {
		t.Errorf("chunk count = %d", result.ChunkCount)
	}

	rec = doJSON(t, mux, http.MethodGet, "/api/v1/documents", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
}

func TestHandleIngest_ValidationFailureHasField(t *testing.T) {
	mux := newTestMux(&fixedStore{})

	rec := doJSON(t, mux, http.MethodPost, "/api/v1/documents", `{"filename":"image.png","content":"x"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var resp struct {
		Field string `json:"field"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Field != "filename" {
		t.Errorf("field = %q, want filename", resp.Field)
	}
}

func TestHandleMemory_ClearAndInfo(t *testing.T) {
	store := &fixedStore{results: []rag.ScoredChunk{
		{Chunk: rag.Chunk{ID: "c1", Content: "content", Source: "doc.txt"}, Distance: 0.2},
	}}
	mux := newTestMux(store)

	doJSON(t, mux, http.MethodPost, "/api/v1/query", `{"question":"q","session_id":"s1"}`)

	rec := doJSON(t, mux, http.MethodGet, "/api/v1/memory/info?session_id=s1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("info status = %d", rec.Code)
	}
	var stats struct {
		TotalTurns int `json:"total_turns"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatal(err)
	}
	if stats.TotalTurns != 2 {
		t.Errorf("total turns = %d, want 2", stats.TotalTurns)
	}

	rec = doJSON(t, mux, http.MethodPost, "/api/v1/memory/clear", `{"session_id":"s1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("clear status = %d", rec.Code)
	}

	rec = doJSON(t, mux, http.MethodGet, "/api/v1/memory/info?session_id=s1", "")
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatal(err)
	}
	if stats.TotalTurns != 0 {
		t.Errorf("total turns after clear = %d", stats.TotalTurns)
	}
}

func TestHandleMemoryInfo_UnknownSession(t *testing.T) {
	mux := newTestMux(&fixedStore{})
	rec := doJSON(t, mux, http.MethodGet, "/api/v1/memory/info?session_id=missing", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestHandleAnalytics_Unconfigured(t *testing.T) {
	mux := newTestMux(&fixedStore{})
	rec := doJSON(t, mux, http.MethodGet, "/api/v1/analytics", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}
