// Package memory is a non-persistent index using brute-force cosine similarity.
package memory

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"

	"chat-with-docs/internal/models"
	"chat-with-docs/internal/vectorstore"
)

var _ vectorstore.Index = (*Storage)(nil)

type entry struct {
	chunk  models.Chunk
	vector []float32
}

type Storage struct {
	mu      sync.RWMutex
	entries []entry
	byID    map[string]int
}

func NewStorage() *Storage {
	return &Storage{byID: make(map[string]int)}
}

func (s *Storage) ExistingIDs(_ context.Context, ids []string) (map[string]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	existing := make(map[string]bool)
	for _, id := range ids {
		if _, ok := s.byID[id]; ok {
			existing[id] = true
		}
	}
	return existing, nil
}

func (s *Storage) Insert(_ context.Context, chunks []models.IndexedChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range chunks {
		if len(c.Embedding) == 0 {
			return errors.New("chunk " + c.ID + " has no embedding")
		}
	}
	for _, c := range chunks {
		if _, ok := s.byID[c.ID]; ok {
			continue
		}
		s.byID[c.ID] = len(s.entries)
		s.entries = append(s.entries, entry{chunk: c.Chunk, vector: normalize(c.Embedding)})
	}
	return nil
}

func (s *Storage) Search(_ context.Context, embedding []float32, k int) ([]models.RetrievalResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := normalize(embedding)
	results := make([]models.RetrievalResult, 0, len(s.entries))
	for _, e := range s.entries {
		results = append(results, models.RetrievalResult{
			ID:       e.chunk.ID,
			Content:  e.chunk.Content,
			Score:    dot(e.vector, q),
			Metadata: e.chunk.Metadata(),
		})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if k < 0 {
		k = 0
	}
	if k < len(results) {
		results = results[:k]
	}
	return results, nil
}

func (s *Storage) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	s.byID = make(map[string]int)
	return nil
}

func (s *Storage) Count(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

func (s *Storage) Close() error { return nil }

func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	out := make([]float32, len(v))
	if sum == 0 {
		return out
	}
	norm := float32(math.Sqrt(sum))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}

func dot(a, b []float32) float32 {
	n := min(len(a), len(b))
	var sum float32
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
