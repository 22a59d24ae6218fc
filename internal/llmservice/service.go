// Package llmservice exposes embedding and text generation behind a single
// interface, with adapters for Ollama, OpenAI and Gemini built on langchaingo.
package llmservice

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"golang.org/x/time/rate"

	"chat-with-docs/internal/config"
	"chat-with-docs/internal/models"
)

// Service embeds text and generates answers. Implementations are safe for
// concurrent use.
type Service interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Generate(ctx context.Context, prompt string) (string, error)
	Name() string
}

var _ Service = (*Client)(nil)

// Client adapts a langchaingo model and embedder to Service.
type Client struct {
	name       string
	llm        llms.Model
	embedder   embeddings.Embedder
	limiter    *rate.Limiter
	maxRetries uint64
	batchSize  int
	logger     zerolog.Logger
}

type Option func(*Client)

// WithRateLimit caps outgoing requests per second. Zero disables the limit.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

func WithMaxRetries(n uint64) Option {
	return func(c *Client) { c.maxRetries = n }
}

// WithBatchSize bounds how many texts go into one embedding request.
func WithBatchSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func NewClient(name string, llm llms.Model, embedder embeddings.Embedder, opts ...Option) *Client {
	c := &Client{
		name:       name,
		llm:        llm,
		embedder:   embedder,
		maxRetries: 3,
		batchSize:  32,
		logger:     log.Logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// New builds the client for the provider selected in cfg.
func New(ctx context.Context, cfg *config.Config) (*Client, error) {
	llmCfg := cfg.LLM()
	var (
		llm      llms.Model
		embedder embeddings.Embedder
		err      error
	)
	switch cfg.Provider {
	case config.ProviderOllama:
		llm, embedder, err = newOllama(llmCfg)
	case config.ProviderOpenAI:
		llm, embedder, err = newOpenAI(llmCfg)
	case config.ProviderGemini:
		llm, embedder, err = newGemini(ctx, llmCfg)
	default:
		err = fmt.Errorf("unsupported provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("init %s: %w", cfg.Provider, err)
	}

	log.Debug().
		Str("provider", cfg.Provider).
		Str("chat_model", llmCfg.ChatModel).
		Str("embedding_model", llmCfg.EmbeddingModel).
		Msg("Initialised language service")

	return NewClient(cfg.Provider, llm, embedder,
		WithRateLimit(cfg.Embedding.RequestsPerSecond),
		WithMaxRetries(cfg.Embedding.MaxRetries),
		WithBatchSize(cfg.Embedding.BatchSize),
	), nil
}

func (c *Client) Name() string {
	return c.name
}

func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	var vec []float32
	err := c.do(ctx, func() error {
		var err error
		vec, err = c.embedder.EmbedQuery(ctx, text)
		if err == nil && len(vec) == 0 {
			err = errors.New("empty embedding returned")
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrEmbeddingUnavailable, err)
	}
	return vec, nil
}

// EmbedBatch returns one vector per text, in input order.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += c.batchSize {
		end := min(start+c.batchSize, len(texts))
		batch := texts[start:end]

		var vecs [][]float32
		err := c.do(ctx, func() error {
			var err error
			vecs, err = c.embedder.EmbedDocuments(ctx, batch)
			if err == nil && len(vecs) != len(batch) {
				err = fmt.Errorf("got %d embeddings for %d texts", len(vecs), len(batch))
			}
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", models.ErrEmbeddingUnavailable, err)
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}

	var text string
	err := c.do(ctx, func() error {
		res, err := c.llm.GenerateContent(ctx, messages)
		if err != nil {
			return err
		}
		if res == nil || len(res.Choices) == 0 {
			return errors.New("model returned no choices")
		}
		text = res.Choices[0].Content
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", models.ErrGenerationFailed, err)
	}
	return text, nil
}

// do waits for the rate limiter and retries transient failures.
func (c *Client) do(ctx context.Context, op func() error) error {
	return retry(ctx, c.maxRetries, func() error {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return permanent(err)
			}
		}
		err := op()
		if err != nil {
			c.logger.Debug().Err(err).Str("provider", c.name).Msg("Language service call failed")
		}
		return err
	})
}
