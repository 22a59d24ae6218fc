package chunker

import (
	"strings"

	"chat-with-docs/internal/models"
)

// Window is a fixed-size sliding window over characters (runes).
type Window struct {
	size    int
	overlap int
}

// Option configures the window splitter.
type Option func(*Window)

// WithChunkSize sets the window size in characters.
func WithChunkSize(size int) Option {
	return func(w *Window) {
		if size > 0 {
			w.size = size
		}
	}
}

// WithOverlap sets how many trailing characters each window repeats from the previous one.
func WithOverlap(overlap int) Option {
	return func(w *Window) {
		if overlap >= 0 {
			w.overlap = overlap
		}
	}
}

// NewWindow creates a window splitter, 800/80 unless told otherwise.
func NewWindow(opts ...Option) *Window {
	w := &Window{
		size:    DefaultChunkSize,
		overlap: DefaultChunkOverlap,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.overlap >= w.size {
		w.overlap = w.size / 10
	}
	return w
}

func (w *Window) Split(segments []models.RawSegment) ([]models.Chunk, error) {
	var chunks []models.Chunk
	for _, seg := range segments {
		for _, content := range chunkContent(seg.Text, w.size, w.overlap) {
			chunks = append(chunks, models.Chunk{
				Content:      content,
				SourcePath:   seg.SourcePath,
				SegmentIndex: seg.SegmentIndex,
				Kind:         seg.Kind,
			})
		}
	}
	return chunks, nil
}

// chunk content into windows of maxChars that overlap by overlapChars
func chunkContent(content string, maxChars, overlapChars int) []string {
	if maxChars <= 0 || strings.TrimSpace(content) == "" {
		return nil
	}
	runes := []rune(content)
	if len(runes) <= maxChars {
		return []string{content}
	}

	step := maxChars - overlapChars
	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := min(start+maxChars, len(runes))
		window := string(runes[start:end])
		if strings.TrimSpace(window) != "" {
			chunks = append(chunks, window)
		}
		if end == len(runes) {
			break
		}
	}
	return chunks
}
