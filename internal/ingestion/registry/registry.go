// Package registry persists document metadata in Postgres. The registry is
// the system of record for what has been ingested; chunk text itself lives in
// the chunk store.
package registry

import (
	"context"
	"database/sql"
	"fmt"

	"docqa/internal/ingestion"
	"docqa/pkg/postgres"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id          TEXT PRIMARY KEY,
	filename    TEXT NOT NULL,
	file_type   TEXT NOT NULL,
	chunk_count INTEGER NOT NULL,
	size_bytes  INTEGER NOT NULL,
	ingested_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_documents_filename ON documents (filename);
`

type Registry struct {
	client *postgres.Client
}

func New(client *postgres.Client) *Registry {
	return &Registry{client: client}
}

// CreateSchema creates the documents table if it does not exist.
func (r *Registry) CreateSchema(ctx context.Context) error {
	if _, err := r.client.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating documents schema: %w", err)
	}
	return nil
}

// Insert upserts one document row. Re-ingesting the same document id
// refreshes its metadata instead of failing.
func (r *Registry) Insert(ctx context.Context, doc ingestion.Document) error {
	const q = `
		INSERT INTO documents (id, filename, file_type, chunk_count, size_bytes, ingested_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			filename = EXCLUDED.filename,
			file_type = EXCLUDED.file_type,
			chunk_count = EXCLUDED.chunk_count,
			size_bytes = EXCLUDED.size_bytes,
			ingested_at = EXCLUDED.ingested_at`
	if _, err := r.client.DB.ExecContext(ctx, q,
		doc.ID, doc.Filename, doc.FileType, doc.ChunkCount, doc.SizeBytes, doc.IngestedAt,
	); err != nil {
		return fmt.Errorf("inserting document %s: %w", doc.ID, err)
	}
	return nil
}

// List returns all registered documents, newest first.
func (r *Registry) List(ctx context.Context) ([]ingestion.Document, error) {
	const q = `
		SELECT id, filename, file_type, chunk_count, size_bytes, ingested_at
		FROM documents
		ORDER BY ingested_at DESC`
	rows, err := r.client.DB.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	docs := make([]ingestion.Document, 0)
	for rows.Next() {
		var doc ingestion.Document
		if err := rows.Scan(&doc.ID, &doc.Filename, &doc.FileType, &doc.ChunkCount, &doc.SizeBytes, &doc.IngestedAt); err != nil {
			return nil, fmt.Errorf("scanning document row: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating document rows: %w", err)
	}
	return docs, nil
}

// DeleteAll removes every document row, returning the number deleted. Used by
// the index reset operation together with ChunkStore.Clear.
func (r *Registry) DeleteAll(ctx context.Context) (int64, error) {
	var deleted int64
	err := r.client.InTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM documents`)
		if err != nil {
			return fmt.Errorf("deleting documents: %w", err)
		}
		deleted, _ = res.RowsAffected()
		return nil
	})
	return deleted, err
}

// Count returns the number of registered documents.
func (r *Registry) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.client.DB.QueryRowContext(ctx, `SELECT count(*) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return n, nil
}
