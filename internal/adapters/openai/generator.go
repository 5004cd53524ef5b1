// Package openai adapts the OpenAI API to the AnswerGenerator and Embedder
// ports.
package openai

import (
	"context"
	"fmt"

	goopenai "github.com/sashabaranov/go-openai"

	"docqa/internal/rag"
	"docqa/pkg/config"
	apperrors "docqa/pkg/errors"
)

// Generator produces chat completions for the QA prompt.
type Generator struct {
	client *goopenai.Client
	cfg    config.OpenAIConfig
}

func newClient(cfg config.OpenAIConfig) *goopenai.Client {
	clientCfg := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return goopenai.NewClientWithConfig(clientCfg)
}

func NewGenerator(cfg config.OpenAIConfig) *Generator {
	if cfg.Model == "" {
		cfg.Model = goopenai.GPT4
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1000
	}
	return &Generator{client: newClient(cfg), cfg: cfg}
}

// Complete sends the messages to the chat completion endpoint and returns the
// first choice.
func (g *Generator) Complete(ctx context.Context, messages []rag.Message) (string, error) {
	chatMessages := make([]goopenai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		chatMessages = append(chatMessages, goopenai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	resp, err := g.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:       g.cfg.Model,
		Messages:    chatMessages,
		Temperature: g.cfg.Temperature,
		MaxTokens:   g.cfg.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("%w: chat completion: %v", apperrors.ErrGeneration, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: chat completion returned no choices", apperrors.ErrGeneration)
	}
	return resp.Choices[0].Message.Content, nil
}
