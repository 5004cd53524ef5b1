// Package analytics tracks query and ingestion activity. Events are buffered
// in-process, published to Kafka by the collector, and folded into live
// statistics by the aggregator.
package analytics

import "time"

type EventType string

const (
	EventQuery           EventType = "query"
	EventNoResult        EventType = "no_result"
	EventRetrievalError  EventType = "retrieval_error"
	EventGenerationError EventType = "generation_error"
	EventDocumentIngest  EventType = "document_ingest"
)

type QueryEvent struct {
	Type           EventType `json:"type"`
	Question       string    `json:"question"`
	SessionID      string    `json:"session_id,omitempty"`
	Confidence     float64   `json:"confidence"`
	RetrievedCount int       `json:"retrieved_count"`
	CacheHit       bool      `json:"cache_hit"`
	LatencyMs      int64     `json:"latency_ms"`
	Timestamp      time.Time `json:"timestamp"`
	RequestID      string    `json:"request_id,omitempty"`
}

type DocumentEvent struct {
	Type       EventType `json:"type"`
	DocumentID string    `json:"document_id"`
	Filename   string    `json:"filename"`
	FileType   string    `json:"file_type"`
	ChunkCount int       `json:"chunk_count"`
	SizeBytes  int       `json:"size_bytes"`
	LatencyMs  int64     `json:"latency_ms"`
	Timestamp  time.Time `json:"timestamp"`
}
