// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ocr extracts word tokens and their pixel geometry from page images.
package ocr

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"strings"

	"github.com/pdiddy/pagescribe/pkg/types"
)

// Word is one recognized token as reported by the OCR engine.
type Word struct {
	Text       string
	Box        image.Rectangle
	Confidence float64
}

// Filter converts engine words to OCRData, dropping tokens that are only
// whitespace and tokens whose confidence truncates to zero or less, so any
// confidence below 1 is dropped.
func Filter(words []Word, dim types.Dimensions) types.OCRData {
	data := types.OCRData{Dimensions: dim}
	for _, w := range words {
		if int(w.Confidence) <= 0 || strings.TrimSpace(w.Text) == "" {
			continue
		}
		data.Append(w.Text, w.Box.Min.X, w.Box.Min.Y, w.Box.Dx(), w.Box.Dy())
	}
	return data
}

// ImageDimensions reads the pixel size of a PNG or JPEG file without decoding
// the full image.
func ImageDimensions(path string) (types.Dimensions, error) {
	f, err := os.Open(path)
	if err != nil {
		return types.Dimensions{}, fmt.Errorf("opening image %s: %w", path, err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return types.Dimensions{}, fmt.Errorf("reading image header %s: %w", path, err)
	}
	return types.Dimensions{Width: cfg.Width, Height: cfg.Height}, nil
}
