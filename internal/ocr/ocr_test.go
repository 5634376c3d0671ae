// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ocr

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/pagescribe/pkg/types"
)

func TestFilter(t *testing.T) {
	words := []Word{
		{Text: "Invoice", Box: image.Rect(10, 10, 55, 20), Confidence: 91.5},
		{Text: "   ", Box: image.Rect(60, 10, 62, 20), Confidence: 80},
		{Text: "ghost", Box: image.Rect(70, 10, 90, 20), Confidence: 0},
		{Text: "noise", Box: image.Rect(70, 10, 90, 20), Confidence: -1},
		{Text: "faint", Box: image.Rect(92, 10, 100, 20), Confidence: 0.9},
		{Text: "$42.00", Box: image.Rect(110, 10, 160, 20), Confidence: 88},
	}
	dim := types.Dimensions{Width: 200, Height: 100}

	got := Filter(words, dim)
	require.NoError(t, got.Check())
	assert.Equal(t, []string{"Invoice", "$42.00"}, got.TextList)
	assert.Equal(t, []int{10, 110}, got.LeftList)
	assert.Equal(t, []int{10, 10}, got.TopList)
	assert.Equal(t, []int{45, 50}, got.WidthList)
	assert.Equal(t, []int{10, 10}, got.HeightList)
	assert.Equal(t, dim, got.Dimensions)
}

func TestFilterConfidenceThreshold(t *testing.T) {
	dim := types.Dimensions{Width: 10, Height: 10}
	for _, tt := range []struct {
		conf float64
		keep bool
	}{
		{conf: 0.5, keep: false},
		{conf: 0.999, keep: false},
		{conf: 1, keep: true},
		{conf: 1.2, keep: true},
	} {
		got := Filter([]Word{{Text: "x", Box: image.Rect(0, 0, 1, 1), Confidence: tt.conf}}, dim)
		assert.Equal(t, tt.keep, got.Len() == 1, "confidence %v", tt.conf)
	}
}

func TestFilterEmpty(t *testing.T) {
	got := Filter(nil, types.Dimensions{Width: 1, Height: 1})
	assert.Equal(t, 0, got.Len())
	assert.NoError(t, got.Check())
}

func TestImageDimensions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "page_1.png")
	img := image.NewGray(image.Rect(0, 0, 31, 47))
	img.Set(3, 3, color.White)
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	dim, err := ImageDimensions(path)
	require.NoError(t, err)
	assert.Equal(t, types.Dimensions{Width: 31, Height: 47}, dim)

	_, err = ImageDimensions(filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
}
