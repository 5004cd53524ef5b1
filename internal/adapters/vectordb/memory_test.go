package vectordb

import (
	"context"
	"strings"
	"testing"

	"docqa/internal/rag"
)

// fakeEmbedder maps known words onto fixed unit vectors so distances in the
// tests are deterministic.
type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	switch {
	case strings.Contains(text, "north"):
		return []float32{1, 0}, nil
	case strings.Contains(text, "east"):
		return []float32{0, 1}, nil
	case strings.Contains(text, "south"):
		return []float32{-1, 0}, nil
	default:
		return []float32{0.7071, 0.7071}, nil
	}
}

func (f fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, _ := f.Embed(ctx, t)
		out[i] = v
	}
	return out, nil
}

func seed(t *testing.T, s *MemoryStore, contents ...string) {
	t.Helper()
	chunks := make([]rag.Chunk, len(contents))
	for i, c := range contents {
		chunks[i] = rag.Chunk{ID: c, Content: c, Source: "test.txt"}
	}
	vecs, _ := fakeEmbedder{}.EmbedBatch(context.Background(), contents)
	if err := s.Store(context.Background(), chunks, vecs); err != nil {
		t.Fatalf("store: %v", err)
	}
}

func TestSearch_EmptyIndexReturnsEmptyNotError(t *testing.T) {
	s := NewMemoryStore(fakeEmbedder{})

	results, err := s.Search(context.Background(), "anything", 5)
	if err != nil {
		t.Fatalf("empty index must not error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("results = %d, want 0", len(results))
	}
}

func TestSearch_RanksByDistance(t *testing.T) {
	s := NewMemoryStore(fakeEmbedder{})
	seed(t, s, "north", "east", "south")

	results, err := s.Search(context.Background(), "north", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("results = %d, want 3", len(results))
	}
	if results[0].Chunk.ID != "north" {
		t.Errorf("nearest = %q, want north", results[0].Chunk.ID)
	}
	if results[0].Distance > 1e-6 {
		t.Errorf("identical vectors should have distance ~0, got %v", results[0].Distance)
	}
	if results[2].Chunk.ID != "south" {
		t.Errorf("farthest = %q, want south", results[2].Chunk.ID)
	}
	if got := results[2].Distance; got < 1.99 || got > 2.01 {
		t.Errorf("opposite vectors should have distance ~2, got %v", got)
	}
}

func TestSearch_FewerThanK(t *testing.T) {
	s := NewMemoryStore(fakeEmbedder{})
	seed(t, s, "north", "east")

	results, err := s.Search(context.Background(), "north", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Errorf("results = %d, want all 2 stored chunks", len(results))
	}
}

func TestStore_CountMismatchRejected(t *testing.T) {
	s := NewMemoryStore(fakeEmbedder{})
	err := s.Store(context.Background(), []rag.Chunk{{ID: "a"}}, nil)
	if err == nil {
		t.Fatal("mismatched chunk/embedding counts should be rejected")
	}
}

func TestClear(t *testing.T) {
	s := NewMemoryStore(fakeEmbedder{})
	seed(t, s, "north")

	if err := s.Clear(context.Background()); err != nil {
		t.Fatal(err)
	}
	n, err := s.Count(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("count after clear = %d", n)
	}
}
