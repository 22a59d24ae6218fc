// Package vectorstore defines the persistent similarity index that chunks are
// written to and retrieved from.
package vectorstore

import (
	"context"

	"chat-with-docs/internal/models"
)

// Index is a persistent store of embedded chunks keyed by chunk ID.
//
// Insert never overwrites: an ID that is already present keeps its stored
// content and embedding. Search returns at most k results ordered by
// descending similarity and an empty slice for an empty index.
type Index interface {
	// ExistingIDs reports which of the given IDs are already stored.
	ExistingIDs(ctx context.Context, ids []string) (map[string]bool, error)
	Insert(ctx context.Context, chunks []models.IndexedChunk) error
	Search(ctx context.Context, embedding []float32, k int) ([]models.RetrievalResult, error)
	// Clear removes every stored chunk.
	Clear(ctx context.Context) error
	Count(ctx context.Context) (int, error)
	Close() error
}
