package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"

	"chat-with-docs/internal/models"
)

// OCREngine recognises the text in an image file.
type OCREngine interface {
	Recognize(ctx context.Context, path string) (string, error)
}

// Tesseract runs the tesseract command line tool.
type Tesseract struct {
	binary string
	lang   string

	once     sync.Once
	resolved string
	err      error
}

type TesseractOption func(*Tesseract)

// WithTesseractBinary overrides the executable name or path. Empty keeps "tesseract".
func WithTesseractBinary(path string) TesseractOption {
	return func(t *Tesseract) {
		if path != "" {
			t.binary = path
		}
	}
}

// WithTesseractLanguage is passed to tesseract as -l.
func WithTesseractLanguage(lang string) TesseractOption {
	return func(t *Tesseract) { t.lang = lang }
}

func NewTesseract(opts ...TesseractOption) *Tesseract {
	t := &Tesseract{binary: "tesseract"}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Recognize returns the text tesseract found in the image. It fails with
// ErrOCREngineUnavailable when the binary cannot be located.
func (t *Tesseract) Recognize(ctx context.Context, path string) (string, error) {
	t.once.Do(func() {
		t.resolved, t.err = exec.LookPath(t.binary)
	})
	if t.err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrOCREngineUnavailable, t.err)
	}

	args := []string{path, "stdout"}
	if t.lang != "" {
		args = append(args, "-l", t.lang)
	}
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, t.resolved, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("tesseract %s: %w: %s", path, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// imageExtractor yields one segment per image, none when OCR finds only whitespace.
func imageExtractor(engine OCREngine) Extractor {
	return func(ctx context.Context, filePath string) ([]models.RawSegment, error) {
		if _, err := os.Stat(filePath); err != nil {
			return nil, err
		}
		text, err := engine.Recognize(ctx, filePath)
		if err != nil {
			if errors.Is(err, models.ErrOCREngineUnavailable) {
				return nil, err
			}
			return nil, fmt.Errorf("ocr: %w", err)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return nil, nil
		}
		return []models.RawSegment{{
			Text:       text,
			SourcePath: filePath,
			Kind:       models.KindImage,
		}}, nil
	}
}
