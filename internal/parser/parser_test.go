package parser

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-with-docs/internal/models"
)

type countingExtractor struct {
	calls int
	fn    Extractor
}

func (c *countingExtractor) extract(ctx context.Context, path string) ([]models.RawSegment, error) {
	c.calls++
	if c.fn != nil {
		return c.fn(ctx, path)
	}
	return []models.RawSegment{{Text: "page of " + filepath.Base(path), SourcePath: path, Kind: models.KindPDF}}, nil
}

type fakeOCR struct {
	text  string
	err   error
	calls int
}

func (f *fakeOCR) Recognize(context.Context, string) (string, error) {
	f.calls++
	return f.text, f.err
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func quietLoader(opts ...LoaderOption) *Loader {
	return NewLoader(append([]LoaderOption{WithLogger(zerolog.Nop())}, opts...)...)
}

func TestLoadAll_MissingDirectory(t *testing.T) {
	pdf := &countingExtractor{}
	l := quietLoader(WithExtractor(".pdf", pdf.extract))

	res, err := l.LoadAll(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, models.ErrNoDocumentsFound)
	assert.Nil(t, res)
	assert.Zero(t, pdf.calls)
}

func TestLoadAll_EmptyDirectory(t *testing.T) {
	pdf := &countingExtractor{}
	l := quietLoader(WithExtractor(".pdf", pdf.extract))

	_, err := l.LoadAll(context.Background(), t.TempDir())
	assert.ErrorIs(t, err, models.ErrNoDocumentsFound)
	assert.Zero(t, pdf.calls)
}

func TestLoadAll_SkipsUnsupportedAndRecursesIntoSubdirectories(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.pdf"), "x")
	writeFile(t, filepath.Join(dir, "nested", "b.pdf"), "x")
	writeFile(t, filepath.Join(dir, "c.exe"), "x")

	pdf := &countingExtractor{}
	l := quietLoader(WithExtractor(".pdf", pdf.extract))

	res, err := l.LoadAll(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 2, pdf.calls)
	assert.Equal(t, 3, res.FilesScanned)
	assert.Equal(t, 2, res.FilesLoaded)
	assert.Len(t, res.Segments, 2)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, "c.exe", filepath.Base(res.Skipped[0]))
}

func TestLoadAll_PerFileFailureDoesNotAbort(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "bad.pdf"), "x")
	writeFile(t, filepath.Join(dir, "good.txt"), "hello world")

	broken := &countingExtractor{fn: func(context.Context, string) ([]models.RawSegment, error) {
		return nil, errors.New("corrupt xref table")
	}}
	l := quietLoader(WithExtractor(".pdf", broken.extract))

	res, err := l.LoadAll(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, "bad.pdf", filepath.Base(res.Failed[0].Path))
	require.Len(t, res.Segments, 1)
	assert.Equal(t, "hello world", res.Segments[0].Text)
}

func TestLoadAll_PanickingExtractorIsRecorded(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "boom.pdf"), "x")
	writeFile(t, filepath.Join(dir, "ok.txt"), "fine")

	l := quietLoader(WithExtractor(".pdf", func(context.Context, string) ([]models.RawSegment, error) {
		panic("index out of range")
	}))

	res, err := l.LoadAll(context.Background(), dir)
	require.NoError(t, err)
	assert.Len(t, res.Failed, 1)
	assert.Len(t, res.Segments, 1)
}

func TestLoadAll_NothingExtractable(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "notes.bin"), "x")
	writeFile(t, filepath.Join(dir, "blank.txt"), "   \n")

	res, err := quietLoader().LoadAll(context.Background(), dir)
	assert.ErrorIs(t, err, models.ErrNoDocumentsFound)
	require.NotNil(t, res)
	assert.Equal(t, 2, res.FilesScanned)
}

func TestLoadAll_OCRUnavailableReportedOnceAndOtherFilesLoad(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "scan1.png"), "x")
	writeFile(t, filepath.Join(dir, "scan2.jpg"), "x")
	writeFile(t, filepath.Join(dir, "doc.txt"), "plain text")

	ocr := &fakeOCR{err: models.ErrOCREngineUnavailable}
	res, err := quietLoader(WithOCREngine(ocr)).LoadAll(context.Background(), dir)
	require.NoError(t, err)

	assert.True(t, res.OCRUnavailable)
	assert.Len(t, res.Failed, 2)
	for _, f := range res.Failed {
		assert.ErrorIs(t, f.Err, models.ErrOCREngineUnavailable)
	}
	require.Len(t, res.Segments, 1)
	assert.Equal(t, models.KindText, res.Segments[0].Kind)
}

func TestLoadAll_ImageSegment(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "receipt.PNG"), "x")

	ocr := &fakeOCR{text: "  Total: 42 EUR \n"}
	res, err := quietLoader(WithOCREngine(ocr)).LoadAll(context.Background(), dir)
	require.NoError(t, err)

	require.Len(t, res.Segments, 1)
	seg := res.Segments[0]
	assert.Equal(t, "Total: 42 EUR", seg.Text)
	assert.Equal(t, 0, seg.SegmentIndex)
	assert.Equal(t, models.KindImage, seg.Kind)
	assert.Equal(t, filepath.ToSlash(filepath.Join(dir, "receipt.PNG")), seg.SourcePath)
}

func TestImageExtractor_BlankOCRYieldsNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blank.png")
	writeFile(t, path, "x")

	segs, err := imageExtractor(&fakeOCR{text: " \n\t"})(context.Background(), path)
	require.NoError(t, err)
	assert.Empty(t, segs)
}

func TestTesseract_MissingBinary(t *testing.T) {
	tess := NewTesseract(WithTesseractBinary("definitely-not-a-real-tesseract-binary"))
	_, err := tess.Recognize(context.Background(), "whatever.png")
	assert.ErrorIs(t, err, models.ErrOCREngineUnavailable)
}

func TestTesseract_PassesLanguage(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs a shell script stand-in for tesseract")
	}
	bin := filepath.Join(t.TempDir(), "fake-tesseract")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\necho \"$@\"\n"), 0o755))

	tess := NewTesseract(WithTesseractBinary(bin), WithTesseractLanguage("eng+deu"))
	out, err := tess.Recognize(context.Background(), "scan.png")
	require.NoError(t, err)
	assert.Equal(t, "scan.png stdout -l eng+deu", strings.TrimSpace(out))
}

func TestSupported(t *testing.T) {
	l := quietLoader()
	for _, name := range []string{"a.pdf", "b.DOCX", "c.png", "d.tif", "e.md", "f.xlsx", "g.pptx"} {
		assert.True(t, l.Supported(name), name)
	}
	for _, name := range []string{"a.exe", "b.doc", "noext"} {
		assert.False(t, l.Supported(name), name)
	}
}

func TestParseDOCX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "letter.docx")
	writeZip(t, path, map[string]string{
		"[Content_Types].xml": `<?xml version="1.0"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"></Types>`,
		"word/_rels/document.xml.rels": `<?xml version="1.0"?><Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"></Relationships>`,
		"word/document.xml": `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>
<w:p><w:r><w:t>Dear</w:t></w:r><w:r><w:t xml:space="preserve"> reader,</w:t></w:r></w:p>
<w:p><w:r><w:t>Second paragraph.</w:t></w:r></w:p>
</w:body></w:document>`,
	})

	segs, err := parseDOCX(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, segs, 1)
	assert.Equal(t, "Dear reader,\nSecond paragraph.", segs[0].Text)
	assert.Equal(t, models.KindDOCX, segs[0].Kind)
	assert.Equal(t, 0, segs[0].SegmentIndex)
}

func TestDocumentText(t *testing.T) {
	xmlBody := `<w:document xmlns:w="w"><w:body>
<w:p><w:r><w:t>a</w:t><w:tab/><w:t>b</w:t><w:br/><w:t>c</w:t></w:r></w:p>
<w:p><w:r><w:instrText>IGNORED</w:instrText></w:r></w:p>
</w:body></w:document>`
	text, err := documentText(xmlBody)
	require.NoError(t, err)
	assert.Equal(t, "a\tb\nc", text)
}

func TestParsePPTX_SlidesInNumericOrder(t *testing.T) {
	slide := func(s string) string {
		return `<p:sld xmlns:p="p" xmlns:a="a"><p:cSld><p:spTree><p:sp><p:txBody><a:p><a:r><a:t>` + s + `</a:t></a:r></a:p></p:txBody></p:sp></p:spTree></p:cSld></p:sld>`
	}
	path := filepath.Join(t.TempDir(), "deck.pptx")
	writeZip(t, path, map[string]string{
		"ppt/slides/slide10.xml": slide("tenth"),
		"ppt/slides/slide2.xml":  slide("second"),
		"ppt/slides/slide1.xml":  slide("first"),
		"ppt/slides/slide3.xml":  slide(" "),
	})

	segs, err := parsePPTX(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, segs, 3)
	assert.Equal(t, "first", segs[0].Text)
	assert.Equal(t, 0, segs[0].SegmentIndex)
	assert.Equal(t, "second", segs[1].Text)
	assert.Equal(t, 1, segs[1].SegmentIndex)
	assert.Equal(t, 9, segs[2].SegmentIndex)
}

func TestParsePPTX_FollowsPresentationOrder(t *testing.T) {
	slide := func(s string) string {
		return `<p:sld xmlns:p="p" xmlns:a="a"><p:cSld><p:spTree><p:sp><p:txBody><a:p><a:r><a:t>` + s + `</a:t></a:r></a:p></p:txBody></p:sp></p:spTree></p:cSld></p:sld>`
	}
	path := filepath.Join(t.TempDir(), "moved.pptx")
	writeZip(t, path, map[string]string{
		"ppt/presentation.xml": `<?xml version="1.0"?>
<p:presentation xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships">
<p:sldIdLst><p:sldId id="258" r:id="rId4"/><p:sldId id="256" r:id="rId2"/><p:sldId id="257" r:id="rId3"/></p:sldIdLst>
</p:presentation>`,
		"ppt/_rels/presentation.xml.rels": `<?xml version="1.0"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="slideMaster" Target="slideMasters/slideMaster1.xml"/>
<Relationship Id="rId2" Type="slide" Target="slides/slide1.xml"/>
<Relationship Id="rId3" Type="slide" Target="slides/slide2.xml"/>
<Relationship Id="rId4" Type="slide" Target="/ppt/slides/slide3.xml"/>
</Relationships>`,
		"ppt/slides/slide1.xml": slide("intro"),
		"ppt/slides/slide2.xml": slide("details"),
		"ppt/slides/slide3.xml": slide("agenda"),
	})

	segs, err := parsePPTX(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, segs, 3)
	assert.Equal(t, []string{"agenda", "intro", "details"}, []string{segs[0].Text, segs[1].Text, segs[2].Text})
	assert.Equal(t, []int{0, 1, 2}, []int{segs[0].SegmentIndex, segs[1].SegmentIndex, segs[2].SegmentIndex})
}

func TestMarkdownToText(t *testing.T) {
	md := []byte("# Title\n\nSome *emphasis* and a [link](http://x).\n\n```\ncode line\n```\n")
	text := markdownToText(md)
	assert.Contains(t, text, "Title")
	assert.Contains(t, text, "Some emphasis and a link.")
	assert.Contains(t, text, "code line")
	assert.NotContains(t, text, "#")
	assert.NotContains(t, text, "http://x")
}

func writeZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
}
