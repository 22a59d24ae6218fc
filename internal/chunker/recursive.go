package chunker

import (
	"fmt"

	"github.com/tmc/langchaingo/textsplitter"

	"chat-with-docs/internal/models"
)

// Recursive splits on paragraph, line and word boundaries before falling back
// to characters, keeping each chunk within size characters.
type Recursive struct {
	splitter textsplitter.RecursiveCharacter
}

func NewRecursive(size, overlap int) *Recursive {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = DefaultChunkOverlap
	}
	return &Recursive{
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(size),
			textsplitter.WithChunkOverlap(overlap),
		),
	}
}

func (r *Recursive) Split(segments []models.RawSegment) ([]models.Chunk, error) {
	var chunks []models.Chunk
	for _, seg := range segments {
		parts, err := r.splitter.SplitText(seg.Text)
		if err != nil {
			return nil, fmt.Errorf("split %s page %d: %w", seg.SourcePath, seg.SegmentIndex, err)
		}
		for _, part := range parts {
			if part == "" {
				continue
			}
			chunks = append(chunks, models.Chunk{
				Content:      part,
				SourcePath:   seg.SourcePath,
				SegmentIndex: seg.SegmentIndex,
				Kind:         seg.Kind,
			})
		}
	}
	return chunks, nil
}
