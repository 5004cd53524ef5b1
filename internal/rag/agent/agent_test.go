package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"docqa/internal/rag"
	"docqa/internal/rag/memory"
	"docqa/pkg/config"
)

type mockStore struct {
	mu      sync.Mutex
	results []rag.ScoredChunk
	err     error
	calls   int
}

func (m *mockStore) Search(ctx context.Context, query string, k int) ([]rag.ScoredChunk, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.results, nil
}

func (m *mockStore) Store(ctx context.Context, chunks []rag.Chunk, embeddings [][]float32) error {
	return nil
}
func (m *mockStore) Clear(ctx context.Context) error { return nil }

func (m *mockStore) Count(ctx context.Context) (int, error) { return len(m.results), nil }

type mockGenerator struct {
	mu      sync.Mutex
	answer  string
	err     error
	calls   int
	prompts []string
}

func (m *mockGenerator) Complete(ctx context.Context, messages []rag.Message) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	for _, msg := range messages {
		m.prompts = append(m.prompts, msg.Content)
	}
	if m.err != nil {
		return "", m.err
	}
	return m.answer, nil
}

func (m *mockGenerator) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func scoredChunk(id, content, source string, distance float64) rag.ScoredChunk {
	return rag.ScoredChunk{
		Chunk:    rag.Chunk{ID: id, Content: content, Source: source},
		Distance: distance,
	}
}

func newTestAgent(store *mockStore, gen *mockGenerator) *Agent {
	return New(
		store,
		gen,
		memory.NewSessionStore(5, 100),
		config.RetrievalConfig{},
		config.MemoryConfig{RenderTurns: 6},
		Options{},
	)
}

func TestProcess_AnswersWithSourcesAndConfidence(t *testing.T) {
	store := &mockStore{results: []rag.ScoredChunk{
		scoredChunk("c1", "gophers burrow underground", "animals.txt", 0.2),
		scoredChunk("c2", "gophers eat roots", "animals.txt", 0.5),
		scoredChunk("c3", "unrelated text", "other.txt", 0.9),
	}}
	gen := &mockGenerator{answer: "Gophers live underground and eat roots."}
	a := newTestAgent(store, gen)

	result := a.Process(context.Background(), &rag.QueryRequest{
		Question:  "where do gophers live?",
		SessionID: "s1",
	})

	if result.Failed() {
		t.Fatalf("unexpected failure: %s (%s)", result.Error, result.ErrorKind)
	}
	if result.Answer != gen.answer {
		t.Errorf("answer = %q", result.Answer)
	}
	if result.RetrievedCount != 2 {
		t.Errorf("retrieved count = %d, want 2 (distance 0.9 filtered)", result.RetrievedCount)
	}
	if result.Confidence != 0.9 {
		t.Errorf("confidence = %v, want 0.9", result.Confidence)
	}
	if len(result.Sources) != 2 {
		t.Fatalf("sources = %d, want 2", len(result.Sources))
	}
	if result.Sources[0].ChunkID != "c1" || result.Sources[0].Score != 0.9 {
		t.Errorf("top source = %+v", result.Sources[0])
	}
	if result.Sources[0].ContentPreview != "gophers burrow underground" {
		t.Errorf("source preview should carry the full chunk text, got %q", result.Sources[0].ContentPreview)
	}
	if result.ProcessingTime < 0 {
		t.Errorf("processing time = %v", result.ProcessingTime)
	}
}

func TestProcess_EmptyRetrievalSkipsGenerator(t *testing.T) {
	store := &mockStore{results: nil}
	gen := &mockGenerator{answer: "should never be used"}
	a := newTestAgent(store, gen)

	result := a.Process(context.Background(), &rag.QueryRequest{Question: "anything", SessionID: "s1"})

	if result.Failed() {
		t.Fatalf("empty retrieval must not be error-shaped: %+v", result)
	}
	if result.Answer != NoInformationAnswer {
		t.Errorf("answer = %q", result.Answer)
	}
	if result.Confidence != 0.0 {
		t.Errorf("confidence = %v, want exactly 0.0", result.Confidence)
	}
	if result.RetrievedCount != 0 || len(result.Sources) != 0 {
		t.Errorf("count = %d, sources = %d", result.RetrievedCount, len(result.Sources))
	}
	if gen.callCount() != 0 {
		t.Errorf("generator invoked %d times on empty retrieval", gen.callCount())
	}
	if a.Sessions().Get("s1").Len() != 0 {
		t.Error("memory should not be updated on the empty-result path")
	}
}

func TestProcess_AllChunksFilteredSkipsGenerator(t *testing.T) {
	store := &mockStore{results: []rag.ScoredChunk{
		scoredChunk("c1", "far away", "doc.txt", 0.7),
		scoredChunk("c2", "further", "doc.txt", 1.5),
	}}
	gen := &mockGenerator{answer: "unused"}
	a := newTestAgent(store, gen)

	result := a.Process(context.Background(), &rag.QueryRequest{Question: "q"})

	if result.Answer != NoInformationAnswer {
		t.Errorf("distance >= threshold chunks should all be dropped, got %q", result.Answer)
	}
	if gen.callCount() != 0 {
		t.Error("generator should not run when everything is filtered")
	}
}

func TestProcess_RetrievalErrorShapedResult(t *testing.T) {
	store := &mockStore{err: errors.New("index unavailable")}
	gen := &mockGenerator{answer: "unused"}
	a := newTestAgent(store, gen)

	result := a.Process(context.Background(), &rag.QueryRequest{Question: "q", SessionID: "s1"})

	if result.ErrorKind != rag.ErrorKindRetrieval {
		t.Fatalf("error kind = %q, want retrieval", result.ErrorKind)
	}
	if !strings.Contains(result.Error, "index unavailable") {
		t.Errorf("error detail missing: %q", result.Error)
	}
	if result.Confidence != 0 || result.RetrievedCount != 0 || len(result.Sources) != 0 {
		t.Errorf("error result not zeroed: %+v", result)
	}
	if gen.callCount() != 0 {
		t.Error("generator should not run after a retrieval failure")
	}
}

func TestProcess_GenerationErrorLeavesMemoryUntouched(t *testing.T) {
	store := &mockStore{results: []rag.ScoredChunk{
		scoredChunk("c1", "content", "doc.txt", 0.2),
	}}
	gen := &mockGenerator{err: errors.New("model overloaded")}
	a := newTestAgent(store, gen)

	result := a.Process(context.Background(), &rag.QueryRequest{Question: "q", SessionID: "s1"})

	if result.ErrorKind != rag.ErrorKindGeneration {
		t.Fatalf("error kind = %q, want generation", result.ErrorKind)
	}
	if a.Sessions().Get("s1").Len() != 0 {
		t.Error("failed generation must not record any turn")
	}
}

func TestProcess_MemoryRecordsExchangeAndFeedsHistory(t *testing.T) {
	store := &mockStore{results: []rag.ScoredChunk{
		scoredChunk("c1", "the sky is blue", "sky.txt", 0.2),
	}}
	gen := &mockGenerator{answer: "It is blue."}
	a := newTestAgent(store, gen)

	a.Process(context.Background(), &rag.QueryRequest{Question: "what color is the sky?", SessionID: "s1"})

	window := a.Sessions().Get("s1")
	if window.Len() != 2 {
		t.Fatalf("window has %d turns after one exchange, want 2", window.Len())
	}

	a.Process(context.Background(), &rag.QueryRequest{Question: "and at night?", SessionID: "s1"})

	gen.mu.Lock()
	second := gen.prompts[len(gen.prompts)-1]
	gen.mu.Unlock()
	if !strings.Contains(second, "User: what color is the sky?") {
		t.Errorf("second prompt missing prior user turn:\n%s", second)
	}
	if !strings.Contains(second, "Assistant: It is blue.") {
		t.Errorf("second prompt missing prior assistant turn:\n%s", second)
	}
}

func TestProcess_FirstPromptUsesEmptyHistorySentinel(t *testing.T) {
	store := &mockStore{results: []rag.ScoredChunk{
		scoredChunk("c1", "content", "doc.txt", 0.3),
	}}
	gen := &mockGenerator{answer: "ok"}
	a := newTestAgent(store, gen)

	a.Process(context.Background(), &rag.QueryRequest{Question: "q", SessionID: "fresh"})

	gen.mu.Lock()
	p := gen.prompts[0]
	gen.mu.Unlock()
	if !strings.Contains(p, "No previous conversation.") {
		t.Errorf("first prompt should carry the empty-history sentinel:\n%s", p)
	}
	if !strings.Contains(p, "Fragment 1:") {
		t.Errorf("prompt missing retrieved fragment block:\n%s", p)
	}
}

func TestProcess_SessionIsolation(t *testing.T) {
	store := &mockStore{results: []rag.ScoredChunk{
		scoredChunk("c1", "content", "doc.txt", 0.2),
	}}
	gen := &mockGenerator{answer: "answer"}
	a := newTestAgent(store, gen)

	a.Process(context.Background(), &rag.QueryRequest{Question: "alpha question", SessionID: "A"})
	a.Process(context.Background(), &rag.QueryRequest{Question: "beta question", SessionID: "B"})

	for _, turn := range a.Sessions().Get("B").Turns() {
		if strings.Contains(turn.Content, "alpha") {
			t.Errorf("session B leaked a turn from session A: %q", turn.Content)
		}
	}
	if a.Sessions().Get("A").Len() != 2 || a.Sessions().Get("B").Len() != 2 {
		t.Error("each session should hold exactly one exchange")
	}
}

func TestProcess_SourcesCappedAtThree(t *testing.T) {
	store := &mockStore{results: []rag.ScoredChunk{
		scoredChunk("c1", "one", "d.txt", 0.1),
		scoredChunk("c2", "two", "d.txt", 0.2),
		scoredChunk("c3", "three", "d.txt", 0.3),
		scoredChunk("c4", "four", "d.txt", 0.4),
		scoredChunk("c5", "five", "d.txt", 0.5),
	}}
	gen := &mockGenerator{answer: "answer"}
	a := newTestAgent(store, gen)

	result := a.Process(context.Background(), &rag.QueryRequest{Question: "q"})

	if result.RetrievedCount != 5 {
		t.Fatalf("retrieved count = %d, want 5", result.RetrievedCount)
	}
	if len(result.Sources) != 3 {
		t.Fatalf("sources = %d, want top 3", len(result.Sources))
	}
	if result.Sources[0].ChunkID != "c1" || result.Sources[2].ChunkID != "c3" {
		t.Errorf("sources not in ranking order: %+v", result.Sources)
	}
}

func TestProcess_DefaultKWhenUnset(t *testing.T) {
	store := &mockStore{}
	gen := &mockGenerator{}
	a := newTestAgent(store, gen)

	a.Process(context.Background(), &rag.QueryRequest{Question: "q", MaxResults: 0})
	a.Process(context.Background(), &rag.QueryRequest{Question: "q", MaxResults: -3})

	if store.calls != 2 {
		t.Fatalf("store called %d times, want 2", store.calls)
	}
}
