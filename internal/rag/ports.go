package rag

import "context"

// Message is one turn handed to the answer generator.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Chat roles shared by the generator contract and the memory window.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChunkStore retrieves nearest-neighbour chunks for a query. Implementations
// embed the query internally. Search returns fewer than k results when the
// index holds fewer entries and an empty slice (not an error) for an empty
// index. Returned Distance values are cosine distances in [0, 2].
type ChunkStore interface {
	Search(ctx context.Context, query string, k int) ([]ScoredChunk, error)
	Store(ctx context.Context, chunks []Chunk, embeddings [][]float32) error
	Clear(ctx context.Context) error
	Count(ctx context.Context) (int, error)
}

// AnswerGenerator is the black-box completion service. Complete may fail with
// network or quota errors; the agent converts those into error-shaped
// results rather than propagating them.
type AnswerGenerator interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// Embedder generates vector embeddings for text. It backs both the chunk
// store adapter and the ingestion pipeline.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}
