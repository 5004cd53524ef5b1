// Package ingestion turns uploaded documents into embedded chunks in the
// chunk store: validate, split, embed, store, register, notify.
package ingestion

import "time"

// IngestRequest is one document upload.
type IngestRequest struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

// IngestResult summarises a completed ingestion.
type IngestResult struct {
	DocumentID     string  `json:"document_id"`
	Filename       string  `json:"filename"`
	FileType       string  `json:"file_type"`
	ChunkCount     int     `json:"chunk_count"`
	SizeBytes      int     `json:"size_bytes"`
	ProcessingTime float64 `json:"processing_time"`
}

// Document is one registry row.
type Document struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	FileType   string    `json:"file_type"`
	ChunkCount int       `json:"chunk_count"`
	SizeBytes  int       `json:"size_bytes"`
	IngestedAt time.Time `json:"ingested_at"`
}
