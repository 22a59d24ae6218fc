// Package chunker cuts raw segments into overlapping windows and gives every
// window a stable identifier.
package chunker

import (
	"fmt"

	"chat-with-docs/internal/config"
	"chat-with-docs/internal/models"
)

const (
	DefaultChunkSize    = 800 // characters
	DefaultChunkOverlap = 80  // characters
)

// Splitter turns segments into chunks. Chunks of one segment are emitted
// contiguously and in order; IDs are not populated.
type Splitter interface {
	Split(segments []models.RawSegment) ([]models.Chunk, error)
}

// New builds the splitter selected by the chunking config.
func New(cfg config.ChunkingConfig) (Splitter, error) {
	switch cfg.Strategy {
	case "", config.StrategyWindow:
		return NewWindow(WithChunkSize(cfg.Size), WithOverlap(cfg.Overlap)), nil
	case config.StrategyRecursive:
		return NewRecursive(cfg.Size, cfg.Overlap), nil
	default:
		return nil, fmt.Errorf("unknown chunking strategy %q", cfg.Strategy)
	}
}

// Chunk runs the splitter and assigns IDs in one step.
func Chunk(s Splitter, segments []models.RawSegment) ([]models.Chunk, error) {
	chunks, err := s.Split(segments)
	if err != nil {
		return nil, err
	}
	return AssignIDs(chunks), nil
}
