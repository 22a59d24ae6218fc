package llmservice

import (
	"context"
	"strings"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"chat-with-docs/internal/config"
)

// newOllama uses separate clients because ollama binds one model per client.
func newOllama(cfg config.LLMConfig) (llms.Model, embeddings.Embedder, error) {
	chat, err := ollama.New(
		ollama.WithServerURL(cfg.BaseURL),
		ollama.WithModel(cfg.ChatModel),
	)
	if err != nil {
		return nil, nil, err
	}
	embedLLM, err := ollama.New(
		ollama.WithServerURL(cfg.BaseURL),
		ollama.WithModel(cfg.EmbeddingModel),
	)
	if err != nil {
		return nil, nil, err
	}
	embedder, err := embeddings.NewEmbedder(embedLLM)
	if err != nil {
		return nil, nil, err
	}
	return chat, embedder, nil
}

func newOpenAI(cfg config.LLMConfig) (llms.Model, embeddings.Embedder, error) {
	opts := []openai.Option{
		openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
		openai.WithModel(cfg.ChatModel),
		openai.WithEmbeddingModel(cfg.EmbeddingModel),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, nil, err
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, nil, err
	}
	return llm, embedder, nil
}

func newGemini(ctx context.Context, cfg config.LLMConfig) (llms.Model, embeddings.Embedder, error) {
	llm, err := googleai.New(ctx,
		googleai.WithAPIKey(cfg.Key),
		googleai.WithDefaultModel(cfg.ChatModel),
		googleai.WithDefaultEmbeddingModel(cfg.EmbeddingModel),
	)
	if err != nil {
		return nil, nil, err
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, nil, err
	}
	return llm, embedder, nil
}
