// Package vectordb provides the in-process ChunkStore used for development
// and tests. It is a brute-force nearest-neighbour scan, not an index engine;
// production deployments put a real vector database behind the same port.
package vectordb

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"docqa/internal/rag"
)

// MemoryStore keeps chunks and their embeddings in memory. Search embeds the
// query via the configured Embedder and ranks chunks by cosine distance
// (1 - cosine similarity, so 0 is closest and 2 is opposite).
type MemoryStore struct {
	mu         sync.RWMutex
	chunks     []rag.Chunk
	embeddings [][]float32
	embedder   rag.Embedder
}

func NewMemoryStore(embedder rag.Embedder) *MemoryStore {
	return &MemoryStore{embedder: embedder}
}

// Search returns the k nearest chunks with their raw cosine distances. Fewer
// than k results are returned when the index is small; an empty index yields
// an empty slice, not an error.
func (s *MemoryStore) Search(ctx context.Context, query string, k int) ([]rag.ScoredChunk, error) {
	s.mu.RLock()
	empty := len(s.chunks) == 0
	s.mu.RUnlock()
	if empty {
		return []rag.ScoredChunk{}, nil
	}

	queryVec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	scored := make([]rag.ScoredChunk, 0, len(s.chunks))
	for i, chunk := range s.chunks {
		scored = append(scored, rag.ScoredChunk{
			Chunk:    chunk,
			Distance: cosineDistance(queryVec, s.embeddings[i]),
		})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Distance < scored[j].Distance
	})
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

// Store appends chunks with their precomputed embeddings.
func (s *MemoryStore) Store(ctx context.Context, chunks []rag.Chunk, embeddings [][]float32) error {
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("chunk/embedding count mismatch: %d vs %d", len(chunks), len(embeddings))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = append(s.chunks, chunks...)
	s.embeddings = append(s.embeddings, embeddings...)
	return nil
}

// Clear drops every stored chunk.
func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = nil
	s.embeddings = nil
	return nil
}

// Count returns the number of stored chunks.
func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks), nil
}

// cosineDistance returns 1 - cos(a, b). Zero-magnitude vectors are treated as
// maximally distant.
func cosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 2.0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 2.0
	}
	return 1.0 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}
