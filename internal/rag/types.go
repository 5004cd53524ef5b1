// Package rag defines the core entities and ports of the question-answering
// pipeline. The types here carry no knowledge of HTTP, storage, or model
// vendors; adapters implement the ports.
package rag

// Chunk is the immutable unit of indexed text produced by ingestion.
type Chunk struct {
	ID          string `json:"id"`
	Content     string `json:"content"`
	Source      string `json:"source"`      // originating document name
	ChunkIndex  int    `json:"chunk_index"` // position within the document
	TotalChunks int    `json:"total_chunks"`
	FileType    string `json:"file_type"`
}

// ScoredChunk pairs a Chunk with the raw cosine distance reported by the
// chunk store for one query, and the derived similarity once scored.
// Distance is in [0, 2]: 0 means identical direction, 2 opposite.
type ScoredChunk struct {
	Chunk      Chunk   `json:"chunk"`
	Distance   float64 `json:"distance"`
	Similarity float64 `json:"similarity"`
}

// RetrievalResult is the outcome of retrieval plus scoring for one query:
// chunks that survived the distance filter, ordered by similarity descending,
// with an aggregate confidence.
type RetrievalResult struct {
	Chunks     []ScoredChunk `json:"chunks"`
	Confidence float64       `json:"confidence"`
	Count      int           `json:"count"`
}

// Source is one answer citation.
type Source struct {
	Source         string  `json:"source"`
	ChunkID        string  `json:"chunk_id"`
	Score          float64 `json:"score"`
	ContentPreview string  `json:"content_preview"`
}

// QueryRequest is the caller's question plus conversation routing.
type QueryRequest struct {
	Question   string `json:"question"`
	SessionID  string `json:"session_id,omitempty"`
	MaxResults int    `json:"max_results,omitempty"`
}

// Error kinds attached to an error-shaped QueryResult. An empty kind with
// zero confidence and zero retrieved count is the empty-result policy branch,
// not a failure.
const (
	ErrorKindRetrieval  = "retrieval"
	ErrorKindGeneration = "generation"
)

// QueryResult is the response entity returned to the caller. It is always
// well-formed: failures populate Error/ErrorKind instead of propagating.
type QueryResult struct {
	Answer         string   `json:"answer"`
	Sources        []Source `json:"sources"`
	Confidence     float64  `json:"confidence"`
	RetrievedCount int      `json:"retrieved_count"`
	ProcessingTime float64  `json:"processing_time"` // wall-clock seconds
	SessionID      string   `json:"session_id,omitempty"`
	Error          string   `json:"error,omitempty"`
	ErrorKind      string   `json:"error_kind,omitempty"`
}

// Failed reports whether the result is error-shaped.
func (r *QueryResult) Failed() bool {
	return r.ErrorKind != ""
}
