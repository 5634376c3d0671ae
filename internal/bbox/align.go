// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package bbox aligns model-returned text sections with OCR tokens on the
// source page image and reports normalized bounding boxes.
//
// All character offsets are in runes. Tokens are treated as if joined by a
// single space, which is how the OCR text is flattened before matching.
package bbox

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/agext/levenshtein"

	"github.com/pdiddy/pagescribe/pkg/types"
)

// tokenSeparator joins OCR tokens into the searchable page text.
const tokenSeparator = " "

var (
	errNoOCRData   = errors.New("no OCR tokens on page")
	errEmptyText   = errors.New("section text is empty")
	errSpanMissing = errors.New("no matching span in OCR text")
	errNoTokens    = errors.New("matched span does not map to OCR tokens")
)

// FindBestSpan slides a window of len(pattern) runes across content and
// returns the window with the smallest edit distance to pattern, with its
// start index. Ties go to the earliest window. When content is shorter than
// pattern there is no window and the result is ("", -1).
func FindBestSpan(content, pattern string) (string, int) {
	span, start, _ := findBestSpan(content, pattern)
	return span, start
}

func findBestSpan(content, pattern string) (string, int, int) {
	c := []rune(content)
	m := utf8.RuneCountInString(pattern)

	best, bestStart, bestDist := "", -1, math.MaxInt
	for i := 0; i+m <= len(c); i++ {
		window := string(c[i : i+m])
		d := levenshtein.Distance(window, pattern, nil)
		if d < bestDist {
			best, bestStart, bestDist = window, i, d
			if d == 0 {
				break
			}
		}
	}
	return best, bestStart, bestDist
}

// MapSpanToTokens returns the indices of the tokens containing the first and
// last character of a span found at start in the space-joined tokens. Token
// i covers [offset_i, offset_i+len(token_i)], both ends inclusive. Either
// index is -1 when no token contains the corresponding offset.
func MapSpanToTokens(tokens []string, span string, start int) (int, int) {
	first, last := -1, -1
	if start < 0 {
		return first, last
	}
	end := start + utf8.RuneCountInString(span)

	offset := 0
	sep := utf8.RuneCountInString(tokenSeparator)
	for i, tok := range tokens {
		tokEnd := offset + utf8.RuneCountInString(tok)
		if first == -1 && offset <= start && start <= tokEnd {
			first = i
		}
		if last == -1 && offset <= end && end <= tokEnd {
			last = i
		}
		if first != -1 && last != -1 {
			break
		}
		offset = tokEnd + sep
	}
	return first, last
}

// ComputePixelBox returns the pixel box for tokens first..last inclusive.
//
// Left and top are the minimum token coordinates. The right edge is taken
// from the token with the largest left coordinate and the bottom edge from
// the token with the largest top coordinate. This approximates the enclosing
// rectangle and is kept for compatibility with existing consumers: a wide
// token that starts left of the rightmost token can extend past the box.
func ComputePixelBox(data types.OCRData, first, last int) (left, top, width, height int, err error) {
	if err := data.Check(); err != nil {
		return 0, 0, 0, 0, err
	}
	if first < 0 || last < 0 || first > last || last >= data.Len() {
		return 0, 0, 0, 0, fmt.Errorf("token range [%d, %d] invalid for %d tokens", first, last, data.Len())
	}

	left, top = data.LeftList[first], data.TopList[first]
	maxLeft, maxTop := first, first
	for i := first + 1; i <= last; i++ {
		left = min(left, data.LeftList[i])
		top = min(top, data.TopList[i])
		if data.LeftList[i] > data.LeftList[maxLeft] {
			maxLeft = i
		}
		if data.TopList[i] > data.TopList[maxTop] {
			maxTop = i
		}
	}

	right := data.LeftList[maxLeft] + data.WidthList[maxLeft]
	bottom := data.TopList[maxTop] + data.HeightList[maxTop]
	return left, top, right - left, bottom - top, nil
}

// Normalize divides a pixel box by the image dimensions.
func Normalize(left, top, width, height int, dim types.Dimensions) (types.BoundingBox, error) {
	if dim.Width <= 0 || dim.Height <= 0 {
		return types.BoundingBox{}, fmt.Errorf("invalid image dimensions %dx%d", dim.Width, dim.Height)
	}
	w, h := float64(dim.Width), float64(dim.Height)
	return types.BoundingBox{
		Left:   float64(left) / w,
		Top:    float64(top) / h,
		Width:  float64(width) / w,
		Height: float64(height) / h,
	}, nil
}

// LocateSection finds text in the OCR tokens and returns its normalized box.
// Every failure is reported as a *types.AlignmentError.
func LocateSection(data types.OCRData, text string) (types.BoundingBox, error) {
	box, err := locateSection(data, text)
	if err != nil {
		return types.BoundingBox{}, &types.AlignmentError{Cause: err}
	}
	return box, nil
}

func locateSection(data types.OCRData, text string) (types.BoundingBox, error) {
	if data.Len() == 0 {
		return types.BoundingBox{}, errNoOCRData
	}
	if err := data.Check(); err != nil {
		return types.BoundingBox{}, err
	}
	if strings.TrimSpace(text) == "" {
		return types.BoundingBox{}, errEmptyText
	}

	pageText := strings.Join(data.TextList, tokenSeparator)
	span, start := FindBestSpan(pageText, text)
	if start < 0 {
		return types.BoundingBox{}, errSpanMissing
	}

	first, last := MapSpanToTokens(data.TextList, span, start)
	if first < 0 || last < 0 {
		return types.BoundingBox{}, errNoTokens
	}

	left, top, width, height, err := ComputePixelBox(data, first, last)
	if err != nil {
		return types.BoundingBox{}, err
	}
	return Normalize(left, top, width, height, data.Dimensions)
}
