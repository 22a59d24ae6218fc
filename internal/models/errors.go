package models

import (
	"errors"
	"fmt"
)

var (
	// ErrNoDocumentsFound means the data directory is missing, empty, or yielded no text.
	ErrNoDocumentsFound = errors.New("no documents found")

	// ErrOCREngineUnavailable means the tesseract binary could not be located.
	ErrOCREngineUnavailable = errors.New("OCR engine unavailable")

	// ErrUnsupportedFileType is informational; the loader skips such files.
	ErrUnsupportedFileType = errors.New("unsupported file type")

	ErrPartialIngestion     = errors.New("partial ingestion failure")
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
	ErrGenerationFailed     = errors.New("generation failed")

	// ErrIndexUnavailable means the vector store could not be opened or created.
	ErrIndexUnavailable = errors.New("index unavailable")
)

// PartialIngestionError reports how many chunks made it into the index before a batch failed.
type PartialIngestionError struct {
	Committed int
	Err       error
}

func (e *PartialIngestionError) Error() string {
	return fmt.Sprintf("%s after %d committed chunks: %v", ErrPartialIngestion, e.Committed, e.Err)
}

func (e *PartialIngestionError) Unwrap() []error {
	return []error{ErrPartialIngestion, e.Err}
}
