package parser

import (
	"context"
	"os"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"chat-with-docs/internal/models"
)

func parseText(_ context.Context, filePath string) ([]models.RawSegment, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return singleSegment(string(data), filePath), nil
}

// parseMarkdown strips markup so chunks carry prose instead of syntax.
func parseMarkdown(_ context.Context, filePath string) ([]models.RawSegment, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return singleSegment(markdownToText(data), filePath), nil
}

func singleSegment(content, filePath string) []models.RawSegment {
	if strings.TrimSpace(content) == "" {
		return nil
	}
	return []models.RawSegment{{
		Text:       content,
		SourcePath: filePath,
		Kind:       models.KindText,
	}}
}

func markdownToText(source []byte) string {
	doc := goldmark.New().Parser().Parse(text.NewReader(source))

	var sb strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock && sb.Len() > 0 && !strings.HasSuffix(sb.String(), "\n") {
				sb.WriteByte('\n')
			}
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Text:
			sb.Write(node.Segment.Value(source))
			if node.SoftLineBreak() || node.HardLineBreak() {
				sb.WriteByte('\n')
			}
		case *ast.String:
			sb.Write(node.Value)
		case *ast.CodeBlock, *ast.FencedCodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				sb.Write(seg.Value(source))
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}
