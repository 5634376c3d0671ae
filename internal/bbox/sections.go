// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package bbox

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/yuin/goldmark"
	"golang.org/x/net/html"

	"github.com/pdiddy/pagescribe/pkg/types"
)

// SectionDelimiter is the marker the model is asked to place after each
// section in bounding-box mode.
const SectionDelimiter = "<!-- section -->"

// Extractor produces OCR tokens for a page image.
type Extractor interface {
	Extract(ctx context.Context, imagePath string) (types.OCRData, error)
}

var (
	reDashes     = regexp.MustCompile(`-+`)
	rePipes      = regexp.MustCompile(`\|`)
	reNewlines   = regexp.MustCompile(`\n+`)
	reWhitespace = regexp.MustCompile(`\s+`)
)

// SplitSections splits page markdown on SectionDelimiter, dropping empty parts.
func SplitSections(content string) []string {
	var sections []string
	for _, part := range strings.Split(content, SectionDelimiter) {
		part = strings.TrimSpace(part)
		if part != "" {
			sections = append(sections, part)
		}
	}
	return sections
}

// PlainText renders markdown to HTML and returns its text with table rules,
// pipes and repeated whitespace removed, so it can be compared with OCR text.
func PlainText(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("rendering markdown: %w", err)
	}
	doc, err := html.Parse(&buf)
	if err != nil {
		return "", fmt.Errorf("parsing rendered markdown: %w", err)
	}

	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	text := reDashes.ReplaceAllString(sb.String(), "")
	text = rePipes.ReplaceAllString(text, "")
	text = reNewlines.ReplaceAllString(text, "\n")
	text = reWhitespace.ReplaceAllString(text, " ")
	return strings.TrimSpace(text), nil
}

// Annotate splits content into sections and aligns each with the OCR tokens
// of imagePath. A section that cannot be aligned keeps its content and gets
// no box. The returned error is non-nil only when OCR itself fails, in which
// case the sections are still returned without boxes.
func Annotate(ctx context.Context, ext Extractor, imagePath, content string, log logrus.FieldLogger) ([]types.Section, error) {
	parts := SplitSections(content)
	sections := make([]types.Section, len(parts))
	for i, p := range parts {
		sections[i] = types.Section{Content: p}
	}
	if len(sections) == 0 {
		return sections, nil
	}

	data, err := ext.Extract(ctx, imagePath)
	if err != nil {
		return sections, &types.AlignmentError{Cause: fmt.Errorf("extracting OCR tokens from %s: %w", imagePath, err)}
	}

	for i := range sections {
		text, err := PlainText(sections[i].Content)
		if err == nil {
			var box types.BoundingBox
			box, err = LocateSection(data, text)
			if err == nil {
				sections[i].BoundingBox = &box
				continue
			}
		}
		log.WithFields(logrus.Fields{
			"image":   imagePath,
			"section": i,
		}).WithError(err).Warn("section left without bounding box")
	}
	return sections, nil
}
