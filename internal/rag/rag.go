// Package rag answers questions from the indexed documents.
package rag

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/prompts"

	"chat-with-docs/internal/llmservice"
	"chat-with-docs/internal/models"
	"chat-with-docs/internal/vectorstore"
)

const DefaultTopK = 5

type RAG struct {
	index  vectorstore.Index
	svc    llmservice.Service
	prompt prompts.PromptTemplate
	logger zerolog.Logger
}

type Option func(*RAG)

// WithPromptTemplate replaces the default template. It must use the
// {{.context}} and {{.question}} variables.
func WithPromptTemplate(tmpl string) Option {
	return func(r *RAG) { r.prompt = newPrompt(tmpl) }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(r *RAG) { r.logger = logger }
}

func NewRAG(index vectorstore.Index, svc llmservice.Service, opts ...Option) *RAG {
	r := &RAG{
		index:  index,
		svc:    svc,
		prompt: newPrompt(models.QueryPromptTemplate),
		logger: log.Logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func newPrompt(tmpl string) prompts.PromptTemplate {
	return prompts.NewPromptTemplate(tmpl, []string{"context", "question"})
}

// Query embeds the question, retrieves the k most similar chunks and asks the
// model to answer from them. With nothing retrieved it answers without calling
// the model.
func (r *RAG) Query(ctx context.Context, query string, k int) (*models.Answer, error) {
	if k <= 0 {
		k = DefaultTopK
	}
	queryEmbedding, err := r.svc.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	docs, err := r.index.Search(ctx, queryEmbedding, k)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	if len(docs) == 0 {
		r.logger.Info().Str("query", query).Msg("No relevant context found")
		return &models.Answer{
			Query:       query,
			Text:        models.NoContextAnswer,
			Sources:     []string{},
			Contextless: true,
		}, nil
	}
	sort.SliceStable(docs, func(i, j int) bool { return docs[i].Score > docs[j].Score })

	prompt, err := r.BuildPrompt(query, docs)
	if err != nil {
		return nil, err
	}
	r.logger.Debug().Str("prompt", prompt).Msg("Prompt")

	text, err := r.svc.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	return &models.Answer{
		Query:   query,
		Text:    text,
		Sources: Sources(docs),
		Context: docs,
	}, nil
}

// BuildPrompt joins the retrieved chunks in the given order and fills the template.
func (r *RAG) BuildPrompt(query string, docs []models.RetrievalResult) (string, error) {
	parts := make([]string, len(docs))
	for i, d := range docs {
		parts[i] = d.Content
	}
	prompt, err := r.prompt.Format(map[string]any{
		"context":  strings.Join(parts, models.ContextSeparator),
		"question": query,
	})
	if err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return prompt, nil
}

// Sources returns the distinct IDs of the retrieved chunks in sorted order.
func Sources(docs []models.RetrievalResult) []string {
	seen := make(map[string]bool, len(docs))
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		if d.ID == "" || seen[d.ID] {
			continue
		}
		seen[d.ID] = true
		out = append(out, d.ID)
	}
	sort.Strings(out)
	return out
}
