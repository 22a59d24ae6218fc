package chunker

import (
	"fmt"

	"chat-with-docs/internal/models"
)

// FormatID renders the stable chunk identifier "{source}:{segment}:{sequence}".
func FormatID(sourcePath string, segmentIndex, sequence int) string {
	return fmt.Sprintf("%s:%d:%d", sourcePath, segmentIndex, sequence)
}

// AssignIDs numbers chunks within each (source, segment) run and sets their IDs.
// Chunks of the same segment must be contiguous, which every Splitter guarantees.
// The input slice is not modified.
func AssignIDs(chunks []models.Chunk) []models.Chunk {
	out := make([]models.Chunk, len(chunks))
	lastKey := ""
	counter := 0
	for i, c := range chunks {
		key := c.Key()
		if i > 0 && key == lastKey {
			counter++
		} else {
			counter = 0
		}
		c.SequenceInSegment = counter
		c.ID = FormatID(c.SourcePath, c.SegmentIndex, counter)
		out[i] = c
		lastKey = key
	}
	return out
}
