package parser

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"

	"chat-with-docs/internal/models"
)

// parsePDF yields one segment per non-blank page; SegmentIndex is the 0-based page number.
func parsePDF(ctx context.Context, filePath string) ([]models.RawSegment, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}

	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	var segments []models.RawSegment
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		if strings.TrimSpace(pageText) == "" {
			continue
		}
		segments = append(segments, models.RawSegment{
			Text:         pageText,
			SourcePath:   filePath,
			SegmentIndex: i - 1,
			Kind:         models.KindPDF,
		})
	}
	return segments, nil
}
