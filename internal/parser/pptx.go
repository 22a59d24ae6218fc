package parser

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strconv"
	"strings"

	"chat-with-docs/internal/models"
)

// parsePPTX yields one segment per slide with text. SegmentIndex is the 0-based
// position in the deck's presentation order, which can differ from the slide
// part names once slides were moved. Decks without a readable slide list fall
// back to part name order.
func parsePPTX(_ context.Context, filePath string) ([]models.RawSegment, error) {
	f, err := zip.OpenReader(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	files := make(map[string]*zip.File, len(f.File))
	for _, file := range f.File {
		files[file.Name] = file
	}
	order, err := presentationOrder(files)
	if err != nil || len(order) == 0 {
		order = slidesByPartName(files)
	}

	var segments []models.RawSegment
	for idx, name := range order {
		file, ok := files[name]
		if !ok {
			continue
		}
		text, err := slideText(file)
		if err != nil {
			return nil, fmt.Errorf("slide %d: %w", idx+1, err)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		segments = append(segments, models.RawSegment{
			Text:         text,
			SourcePath:   filePath,
			SegmentIndex: idx,
			Kind:         models.KindPPTX,
		})
	}
	return segments, nil
}

type pptxRelationships struct {
	Relationships []struct {
		ID     string `xml:"Id,attr"`
		Target string `xml:"Target,attr"`
	} `xml:"Relationship"`
}

// presentationOrder resolves p:sldIdLst through the presentation relationships
// into slide part names, in the order the deck shows them.
func presentationOrder(files map[string]*zip.File) ([]string, error) {
	pres, ok := files["ppt/presentation.xml"]
	if !ok {
		return nil, nil
	}
	relsFile, ok := files["ppt/_rels/presentation.xml.rels"]
	if !ok {
		return nil, nil
	}

	relsData, err := readZipFile(relsFile)
	if err != nil {
		return nil, err
	}
	var rels pptxRelationships
	if err := xml.Unmarshal(relsData, &rels); err != nil {
		return nil, err
	}
	targets := make(map[string]string, len(rels.Relationships))
	for _, r := range rels.Relationships {
		targets[r.ID] = resolvePart("ppt", r.Target)
	}

	rc, err := pres.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var order []string
	dec := xml.NewDecoder(rc)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		el, ok := tok.(xml.StartElement)
		if !ok || el.Name.Local != "sldId" {
			continue
		}
		// r:id is the namespaced id attribute; the bare id is the numeric slide id.
		for _, attr := range el.Attr {
			if attr.Name.Local == "id" && attr.Name.Space != "" {
				if target, ok := targets[attr.Value]; ok {
					order = append(order, target)
				}
			}
		}
	}
	return order, nil
}

// slidesByPartName lists ppt/slides/slideN.xml by N.
func slidesByPartName(files map[string]*zip.File) []string {
	type slide struct {
		num  int
		name string
	}
	var slides []slide
	for name := range files {
		if !strings.HasPrefix(name, "ppt/slides/slide") || !strings.HasSuffix(name, ".xml") {
			continue
		}
		num, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, "ppt/slides/slide"), ".xml"))
		if err != nil {
			continue
		}
		slides = append(slides, slide{num: num, name: name})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })

	// Keep gaps so slide N still lands on index N-1.
	if len(slides) == 0 {
		return nil
	}
	order := make([]string, slides[len(slides)-1].num)
	for _, s := range slides {
		if s.num > 0 {
			order[s.num-1] = s.name
		}
	}
	return order
}

func resolvePart(base, target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(target, "/")
	}
	return path.Clean(path.Join(base, target))
}

func readZipFile(file *zip.File) ([]byte, error) {
	rc, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// slideText collects a:t runs, one line per a:p paragraph.
func slideText(file *zip.File) (string, error) {
	rc, err := file.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	dec := xml.NewDecoder(rc)
	var (
		sb     strings.Builder
		inText bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
	return strings.TrimSpace(sb.String()), nil
}
