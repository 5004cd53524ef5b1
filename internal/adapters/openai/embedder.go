package openai

import (
	"context"
	"fmt"

	goopenai "github.com/sashabaranov/go-openai"

	"docqa/pkg/config"
	apperrors "docqa/pkg/errors"
)

// Embedder produces vector embeddings for queries and document chunks.
type Embedder struct {
	client *goopenai.Client
	model  goopenai.EmbeddingModel
}

func NewEmbedder(cfg config.OpenAIConfig) *Embedder {
	model := goopenai.AdaEmbeddingV2
	if cfg.EmbeddingModel != "" {
		model = goopenai.EmbeddingModel(cfg.EmbeddingModel)
	}
	return &Embedder{client: newClient(cfg), model: model}
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds the texts in a single API call, preserving input order.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	resp, err := e.client.CreateEmbeddings(ctx, goopenai.EmbeddingRequest{
		Input: texts,
		Model: e.model,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: embeddings: %v", apperrors.ErrRetrieval, err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: embeddings returned %d vectors for %d inputs",
			apperrors.ErrRetrieval, len(resp.Data), len(texts))
	}
	vectors := make([][]float32, len(texts))
	for _, item := range resp.Data {
		vectors[item.Index] = item.Embedding
	}
	return vectors, nil
}
