package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"docqa/internal/analytics"
	"docqa/internal/ingestion/validator"
	"docqa/internal/rag"
	"docqa/pkg/config"
	apperrors "docqa/pkg/errors"
	"docqa/pkg/metrics"
	"docqa/pkg/resilience"
)

// DocumentRegistry is the persistence port for document metadata. A nil
// registry degrades to chunk-store-only operation.
type DocumentRegistry interface {
	Insert(ctx context.Context, doc Document) error
	List(ctx context.Context) ([]Document, error)
	DeleteAll(ctx context.Context) (int64, error)
}

// CacheInvalidator drops cached retrieval results after the index changes.
type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

// Tracker receives analytics events off the request path.
type Tracker interface {
	Track(event interface{})
}

// Service runs the ingestion pipeline.
type Service struct {
	validator *validator.Validator
	chunker   *Chunker
	embedder  rag.Embedder
	store     rag.ChunkStore
	registry  DocumentRegistry
	cache     CacheInvalidator
	tracker   Tracker
	metrics   *metrics.Metrics
	cfg       config.IngestionConfig
	logger    *slog.Logger
}

// Options carries the optional dependencies of a Service.
type Options struct {
	Registry DocumentRegistry
	Cache    CacheInvalidator
	Tracker  Tracker
	Metrics  *metrics.Metrics
}

func NewService(embedder rag.Embedder, store rag.ChunkStore, cfg config.IngestionConfig, opts Options) *Service {
	if cfg.EmbedBatchSize <= 0 {
		cfg.EmbedBatchSize = 64
	}
	if cfg.EmbedConcurrency <= 0 {
		cfg.EmbedConcurrency = 4
	}
	return &Service{
		validator: validator.New(cfg.MaxDocumentBytes, cfg.AllowedExtensions),
		chunker:   NewChunker(cfg.ChunkSize, cfg.ChunkOverlap),
		embedder:  embedder,
		store:     store,
		registry:  opts.Registry,
		cache:     opts.Cache,
		tracker:   opts.Tracker,
		metrics:   opts.Metrics,
		cfg:       cfg,
		logger:    slog.Default().With("component", "ingestion"),
	}
}

// Ingest validates, chunks, embeds, and stores one document, then registers
// it and invalidates the retrieval cache.
func (s *Service) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	start := time.Now()

	if err := s.validator.Validate(req.Filename, len(req.Content)); err != nil {
		return nil, err
	}

	texts := s.chunker.Split(req.Content)
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: document produced no chunks", apperrors.ErrInvalidInput)
	}

	docID := DocumentID(req.Filename, req.Content)
	fileType := validator.FileType(req.Filename)
	chunks := make([]rag.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = rag.Chunk{
			ID:          ChunkID(docID, i),
			Content:     text,
			Source:      req.Filename,
			ChunkIndex:  i,
			TotalChunks: len(texts),
			FileType:    fileType,
		}
	}

	embeddings, err := s.embedAll(ctx, texts)
	if err != nil {
		return nil, err
	}

	if err := s.store.Store(ctx, chunks, embeddings); err != nil {
		return nil, fmt.Errorf("storing chunks for %s: %w", req.Filename, err)
	}

	if s.registry != nil {
		doc := Document{
			ID:         docID,
			Filename:   req.Filename,
			FileType:   fileType,
			ChunkCount: len(chunks),
			SizeBytes:  len(req.Content),
			IngestedAt: time.Now().UTC(),
		}
		if err := s.registry.Insert(ctx, doc); err != nil {
			s.logger.Error("registry insert failed", "document_id", docID, "error", err)
		}
	}

	s.invalidateCache(ctx)

	if s.metrics != nil {
		s.metrics.DocumentsIngested.Inc()
		s.metrics.ChunksIngested.Add(float64(len(chunks)))
	}
	if s.tracker != nil {
		s.tracker.Track(analytics.DocumentEvent{
			Type:       analytics.EventDocumentIngest,
			DocumentID: docID,
			Filename:   req.Filename,
			FileType:   fileType,
			ChunkCount: len(chunks),
			SizeBytes:  len(req.Content),
			LatencyMs:  time.Since(start).Milliseconds(),
			Timestamp:  time.Now().UTC(),
		})
	}

	s.logger.Info("document ingested",
		"document_id", docID,
		"filename", req.Filename,
		"chunks", len(chunks),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	return &IngestResult{
		DocumentID:     docID,
		Filename:       req.Filename,
		FileType:       fileType,
		ChunkCount:     len(chunks),
		SizeBytes:      len(req.Content),
		ProcessingTime: time.Since(start).Seconds(),
	}, nil
}

// embedAll embeds chunk texts in bounded concurrent batches, preserving
// order. Each batch is retried on transient failure.
func (s *Service) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.EmbedConcurrency)

	for offset := 0; offset < len(texts); offset += s.cfg.EmbedBatchSize {
		end := offset + s.cfg.EmbedBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		offset, end := offset, end
		g.Go(func() error {
			var vectors [][]float32
			err := resilience.Retry(ctx, "embed-batch", resilience.RetryConfig{}, func() error {
				var batchErr error
				vectors, batchErr = s.embedder.EmbedBatch(ctx, texts[offset:end])
				return batchErr
			})
			if err != nil {
				return fmt.Errorf("embedding batch [%d:%d]: %w", offset, end, err)
			}
			copy(embeddings[offset:end], vectors)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return embeddings, nil
}

// List returns the registered documents, or an empty slice when no registry
// is configured.
func (s *Service) List(ctx context.Context) ([]Document, error) {
	if s.registry == nil {
		return []Document{}, nil
	}
	return s.registry.List(ctx)
}

// Reset clears the chunk store, the registry, and the retrieval cache.
func (s *Service) Reset(ctx context.Context) error {
	if err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("clearing chunk store: %w", err)
	}
	if s.registry != nil {
		deleted, err := s.registry.DeleteAll(ctx)
		if err != nil {
			return fmt.Errorf("clearing document registry: %w", err)
		}
		s.logger.Info("document registry cleared", "documents_deleted", deleted)
	}
	s.invalidateCache(ctx)
	return nil
}

// ChunkCount reports the number of chunks currently indexed.
func (s *Service) ChunkCount(ctx context.Context) (int, error) {
	return s.store.Count(ctx)
}

func (s *Service) invalidateCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn("retrieval cache invalidation failed", "error", err)
	}
}
