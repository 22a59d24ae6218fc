// Package chromemdb is the default on-disk index, backed by chromem-go.
package chromemdb

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"chat-with-docs/internal/models"
	"chat-with-docs/internal/vectorstore"
)

var _ vectorstore.Index = (*VectorDBManager)(nil)

// VectorDBManager encapsulates the chromem-go database operations
type VectorDBManager struct {
	mu         sync.RWMutex
	db         *chromem.DB
	collection *chromem.Collection
	dbPath     string
	name       string
	compress   bool
	logger     zerolog.Logger
}

type Option func(*VectorDBManager)

func WithCompression(compress bool) Option {
	return func(m *VectorDBManager) { m.compress = compress }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(m *VectorDBManager) { m.logger = logger }
}

// NewVectorDBManager opens (or creates) the persistent database at dbPath and the
// named collection inside it.
func NewVectorDBManager(dbPath, collectionName string, opts ...Option) (*VectorDBManager, error) {
	m := &VectorDBManager{
		dbPath: dbPath,
		name:   collectionName,
		logger: log.Logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	if err := m.open(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *VectorDBManager) open() error {
	db, err := chromem.NewPersistentDB(m.dbPath, m.compress)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", models.ErrIndexUnavailable, m.dbPath, err)
	}
	// Embeddings are always computed by the caller, so no embedding func is registered.
	c, err := db.GetOrCreateCollection(m.name, nil, nil)
	if err != nil {
		return fmt.Errorf("%w: collection %s: %v", models.ErrIndexUnavailable, m.name, err)
	}
	m.db = db
	m.collection = c
	return nil
}

func (m *VectorDBManager) ExistingIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	existing := make(map[string]bool)
	if m.collection.Count() == 0 {
		return existing, nil
	}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, err := m.collection.GetByID(ctx, id); err == nil {
			existing[id] = true
		}
	}
	return existing, nil
}

// Insert adds the chunks whose IDs are not stored yet.
func (m *VectorDBManager) Insert(ctx context.Context, chunks []models.IndexedChunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	docs := make([]chromem.Document, 0, len(chunks))
	seen := make(map[string]bool, len(chunks))
	for _, c := range chunks {
		if seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		if _, err := m.collection.GetByID(ctx, c.ID); err == nil {
			continue
		}
		docs = append(docs, chromem.Document{
			ID:        c.ID,
			Content:   c.Content,
			Metadata:  c.Metadata(),
			Embedding: c.Embedding,
		})
	}
	if len(docs) == 0 {
		return nil
	}
	if err := m.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	m.logger.Debug().Int("documents", len(docs)).Str("collection", m.name).Msg("Added documents")
	return nil
}

func (m *VectorDBManager) Search(ctx context.Context, embedding []float32, k int) ([]models.RetrievalResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := m.collection.Count()
	if n == 0 || k <= 0 {
		return []models.RetrievalResult{}, nil
	}
	if k > n {
		k = n
	}
	results, err := m.collection.QueryEmbedding(ctx, embedding, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}
	out := make([]models.RetrievalResult, 0, len(results))
	for _, r := range results {
		out = append(out, models.RetrievalResult{
			ID:       r.ID,
			Content:  r.Content,
			Score:    r.Similarity,
			Metadata: r.Metadata,
		})
	}
	return out, nil
}

// Clear drops the collection and removes the database directory, then starts
// over with an empty one. A missing directory is fine.
func (m *VectorDBManager) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.db.DeleteCollection(m.name); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	if err := os.RemoveAll(m.dbPath); err != nil {
		return fmt.Errorf("remove %s: %w", m.dbPath, err)
	}
	m.logger.Info().Str("path", m.dbPath).Msg("Cleared vector store")
	return m.open()
}

func (m *VectorDBManager) Count(context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.collection.Count(), nil
}

// Close is a no-op; chromem persists every write immediately.
func (m *VectorDBManager) Close() error {
	return nil
}
