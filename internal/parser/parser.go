// Package parser walks a data directory and extracts raw text segments from
// every supported file.
package parser

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"chat-with-docs/internal/models"
)

// Extractor pulls raw segments out of a single file.
type Extractor func(ctx context.Context, path string) ([]models.RawSegment, error)

// FailedFile is a file that could not be opened or parsed.
type FailedFile struct {
	Path string
	Err  error
}

// LoadResult is what a LoadAll run produced.
type LoadResult struct {
	Segments       []models.RawSegment
	FilesScanned   int
	FilesLoaded    int
	Skipped        []string
	Failed         []FailedFile
	OCRUnavailable bool
}

type Loader struct {
	extractors map[string]Extractor
	logger     zerolog.Logger
}

type LoaderOption func(*Loader)

// WithOCREngine routes image files through the given engine.
func WithOCREngine(engine OCREngine) LoaderOption {
	return func(l *Loader) {
		for _, ext := range imageExtensions {
			l.extractors[ext] = imageExtractor(engine)
		}
	}
}

// WithExtractor registers (or replaces) the extractor for an extension such as ".pdf".
func WithExtractor(ext string, fn Extractor) LoaderOption {
	return func(l *Loader) {
		l.extractors[strings.ToLower(ext)] = fn
	}
}

func WithLogger(logger zerolog.Logger) LoaderOption {
	return func(l *Loader) {
		l.logger = logger
	}
}

var imageExtensions = []string{".png", ".jpg", ".jpeg", ".tiff", ".tif", ".bmp", ".gif"}

// NewLoader returns a loader for PDF, DOCX, PPTX, XLSX, TXT, Markdown and images.
// Images use the tesseract binary unless WithOCREngine says otherwise.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		extractors: map[string]Extractor{
			".pdf":      parsePDF,
			".docx":     parseDOCX,
			".pptx":     parsePPTX,
			".xlsx":     parseXLSX,
			".txt":      parseText,
			".md":       parseMarkdown,
			".markdown": parseMarkdown,
		},
		logger: log.Logger,
	}
	ocr := NewTesseract()
	for _, ext := range imageExtensions {
		l.extractors[ext] = imageExtractor(ocr)
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Supported reports whether files with this name have an extractor.
func (l *Loader) Supported(path string) bool {
	_, ok := l.extractors[strings.ToLower(filepath.Ext(path))]
	return ok
}

// LoadAll walks dir recursively and extracts segments from every supported file.
// Per-file failures are recorded in the result and do not stop the walk. It returns
// ErrNoDocumentsFound when dir is missing, empty, or nothing could be extracted.
func (l *Loader) LoadAll(ctx context.Context, dir string) (*LoadResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			l.logger.Error().Str("dir", dir).Msg("Data folder not found")
			return nil, fmt.Errorf("%w: data folder %q does not exist", models.ErrNoDocumentsFound, dir)
		}
		return nil, fmt.Errorf("%w: read data folder %q: %v", models.ErrNoDocumentsFound, dir, err)
	}
	if len(entries) == 0 {
		l.logger.Warn().Str("dir", dir).Msg("Data folder is empty")
		return nil, fmt.Errorf("%w: data folder %q is empty", models.ErrNoDocumentsFound, dir)
	}

	l.logger.Info().Str("dir", dir).Msg("Scanning for documents")
	result := &LoadResult{}
	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			result.Failed = append(result.Failed, FailedFile{Path: path, Err: err})
			l.logger.Warn().Err(err).Str("path", path).Msg("Could not read path")
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		result.FilesScanned++
		l.loadFile(ctx, filepath.ToSlash(path), result)
		return nil
	})
	if walkErr != nil {
		return result, walkErr
	}

	if len(result.Segments) == 0 {
		l.logger.Warn().Int("files", result.FilesScanned).Msg("No supported documents were loaded")
		return result, fmt.Errorf("%w: no extractable content in %q", models.ErrNoDocumentsFound, dir)
	}
	l.logger.Info().
		Int("segments", len(result.Segments)).
		Int("files", result.FilesLoaded).
		Int("skipped", len(result.Skipped)).
		Int("failed", len(result.Failed)).
		Msg("Loaded documents")
	return result, nil
}

func (l *Loader) loadFile(ctx context.Context, path string, result *LoadResult) {
	ext := strings.ToLower(filepath.Ext(path))
	extract, ok := l.extractors[ext]
	if !ok {
		result.Skipped = append(result.Skipped, path)
		l.logger.Info().Err(models.ErrUnsupportedFileType).Str("file", filepath.Base(path)).Msg("Skipping file")
		return
	}

	segments, err := safeExtract(ctx, extract, path)
	if err != nil {
		result.Failed = append(result.Failed, FailedFile{Path: path, Err: err})
		if errors.Is(err, models.ErrOCREngineUnavailable) {
			if !result.OCRUnavailable {
				l.logger.Error().Err(err).Msg("Tesseract OCR engine not found, image files will be skipped")
			}
			result.OCRUnavailable = true
			return
		}
		l.logger.Warn().Err(err).Str("file", filepath.Base(path)).Msg("Could not load file")
		return
	}
	if len(segments) == 0 {
		l.logger.Warn().Str("file", filepath.Base(path)).Msg("No text found in file")
		return
	}

	result.FilesLoaded++
	result.Segments = append(result.Segments, segments...)
	l.logger.Debug().Str("file", filepath.Base(path)).Int("segments", len(segments)).Msg("Loaded file")
}

// safeExtract turns a panicking parser into an ordinary per-file failure.
func safeExtract(ctx context.Context, extract Extractor, path string) (segments []models.RawSegment, err error) {
	defer func() {
		if r := recover(); r != nil {
			segments = nil
			err = fmt.Errorf("parse %s: %v", path, r)
		}
	}()
	return extract(ctx, path)
}
