// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ocr

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"

	"github.com/pdiddy/pagescribe/pkg/types"
)

// Tesseract extracts word-level tokens with the Tesseract engine. A new
// engine client is created per call so concurrent page workers never share
// one.
type Tesseract struct {
	// Languages passed to Tesseract (e.g. "eng"). Empty uses the engine default.
	Languages []string
}

// NewTesseract returns a Tesseract extractor for the given languages.
func NewTesseract(languages ...string) *Tesseract {
	return &Tesseract{Languages: languages}
}

// Extract runs word-level recognition on imagePath.
func (t *Tesseract) Extract(ctx context.Context, imagePath string) (types.OCRData, error) {
	if err := ctx.Err(); err != nil {
		return types.OCRData{}, err
	}

	dim, err := ImageDimensions(imagePath)
	if err != nil {
		return types.OCRData{}, err
	}

	c := gosseract.NewClient()
	defer c.Close()

	if len(t.Languages) > 0 {
		if err := c.SetLanguage(t.Languages...); err != nil {
			return types.OCRData{}, fmt.Errorf("set languages: %w", err)
		}
	}
	if err := c.SetImage(imagePath); err != nil {
		return types.OCRData{}, fmt.Errorf("set image %s: %w", imagePath, err)
	}

	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return types.OCRData{}, fmt.Errorf("recognize words in %s: %w", imagePath, err)
	}

	words := make([]Word, 0, len(boxes))
	for _, b := range boxes {
		words = append(words, Word{Text: b.Word, Box: b.Box, Confidence: b.Confidence})
	}
	return Filter(words, dim), nil
}
