package provider

import (
	"context"
	"errors"
	"strings"

	"github.com/mohammad-safakhou/askweb/config"
	"github.com/mohammad-safakhou/askweb/provider/models"
	openai_provider "github.com/mohammad-safakhou/askweb/provider/openai"
)

// Client represents different LLM providers
type Client string

const (
	OpenAI Client = "openai"
)

// Provider is the interface that all LLM implementations must satisfy
type Provider interface {
	// ChatStream starts a streamed completion. The channel is closed after the final chunk.
	ChatStream(ctx context.Context, messages []models.Message) (<-chan models.StreamChunk, error)
	Complete(ctx context.Context, messages []models.Message) (string, error)
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

var ErrMissingAPIKey = errors.New("llm.api_key not set")

// NewProvider creates a new LLM client based on the provided configuration
func NewProvider(cfg config.LLMConfig) (Provider, error) {
	switch Client(strings.ToLower(cfg.Type)) {
	case OpenAI, "":
		if strings.TrimSpace(cfg.APIKey) == "" {
			return nil, ErrMissingAPIKey
		}
		return openai_provider.NewOpenAIClient(openai_provider.Config{
			APIKey:          cfg.APIKey,
			BaseURL:         cfg.BaseURL,
			CompletionModel: cfg.ChatModel,
			EmbeddingModel:  cfg.EmbeddingModel,
			Temperature:     cfg.Temperature,
			MaxTokens:       cfg.MaxTokens,
			Timeout:         cfg.Timeout,
		}), nil
	default:
		return nil, errors.New("unsupported LLM provider")
	}
}
