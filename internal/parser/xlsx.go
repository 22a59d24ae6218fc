package parser

import (
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"chat-with-docs/internal/models"
)

// parseXLSX yields one segment per non-empty sheet, rows tab separated.
func parseXLSX(_ context.Context, filePath string) ([]models.RawSegment, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var segments []models.RawSegment
	for sheetNum, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			return nil, fmt.Errorf("sheet %s: %w", sheetName, err)
		}
		var text strings.Builder
		for _, row := range rows {
			line := strings.TrimRight(strings.Join(row, "\t"), "\t ")
			if line == "" {
				continue
			}
			text.WriteString(line)
			text.WriteString("\n")
		}
		if strings.TrimSpace(text.String()) == "" {
			continue
		}
		segments = append(segments, models.RawSegment{
			Text:         fmt.Sprintf("## Sheet: %s\n%s", sheetName, text.String()),
			SourcePath:   filePath,
			SegmentIndex: sheetNum,
			Kind:         models.KindXLSX,
		})
	}
	return segments, nil
}
