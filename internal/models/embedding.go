package models

import "fmt"

// RawSegment is one unit of extracted text: a PDF page, a whole DOCX, one OCR'd image.
type RawSegment struct {
	Text         string
	SourcePath   string
	SegmentIndex int
	Kind         string
}

// Chunk represents a bounded slice of a segment's text with metadata
type Chunk struct {
	ID                string
	Content           string
	SourcePath        string
	SegmentIndex      int
	SequenceInSegment int
	Kind              string
}

// Key identifies the segment a chunk was cut from.
func (c Chunk) Key() string {
	return fmt.Sprintf("%s:%d", c.SourcePath, c.SegmentIndex)
}

// Metadata is what gets persisted next to the embedding.
func (c Chunk) Metadata() map[string]string {
	return map[string]string{
		MetaSource:   c.SourcePath,
		MetaSegment:  fmt.Sprintf("%d", c.SegmentIndex),
		MetaSequence: fmt.Sprintf("%d", c.SequenceInSegment),
		MetaKind:     c.Kind,
	}
}

// IndexedChunk is a chunk plus its embedding, as stored in the vector index.
type IndexedChunk struct {
	Chunk
	Embedding []float32
}

// RetrievalResult is one hit of a similarity search.
type RetrievalResult struct {
	ID       string
	Content  string
	Score    float32
	Metadata map[string]string
}

// Answer is what the query engine hands back for one question.
type Answer struct {
	Query       string            `json:"query"`
	Text        string            `json:"text"`
	Sources     []string          `json:"sources"`
	Contextless bool              `json:"contextless"`
	Context     []RetrievalResult `json:"-"`
}
