// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pdf counts, subsets and rasterizes PDF documents.
package pdf

import (
	"fmt"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/pdiddy/pagescribe/pkg/types"
)

// PageCount returns the number of pages in the PDF at path.
func PageCount(path string) (int, error) {
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("counting pages in %s: %w", path, err)
	}
	return n, nil
}

// NormalizePages returns the requested page numbers sorted and de-duplicated.
func NormalizePages(pages []int) []int {
	out := slices.Clone(pages)
	slices.Sort(out)
	return slices.Compact(out)
}

// ValidatePages checks every requested page against [1, total] and reports
// all offenders at once.
func ValidatePages(pages []int, total int) error {
	var invalid []int
	for _, p := range NormalizePages(pages) {
		if p < 1 || p > total {
			invalid = append(invalid, p)
		}
	}
	if len(invalid) > 0 {
		return &types.PageNumberOutOfBoundError{
			TotalPages: total,
			Requested:  slices.Clone(pages),
			Invalid:    invalid,
		}
	}
	return nil
}

// Selector writes a new PDF holding only the requested pages.
type Selector struct {
	count func(path string) (int, error)
	trim  func(in, out string, pages []string) error
}

// NewSelector returns a Selector backed by pdfcpu.
func NewSelector() *Selector {
	return &Selector{
		count: PageCount,
		trim: func(in, out string, pages []string) error {
			return api.TrimFile(in, out, pages, model.NewDefaultConfiguration())
		},
	}
}

// Select validates pages against src and writes them, in ascending order,
// to a new file in destDir. It returns the new path and the normalized page
// numbers, whose k-th entry is the source page of the k-th output page.
// Out-of-range requests fail before any file is written.
func (s *Selector) Select(src string, pages []int, destDir string) (string, []int, error) {
	total, err := s.count(src)
	if err != nil {
		return "", nil, err
	}
	if err := ValidatePages(pages, total); err != nil {
		return "", nil, err
	}

	selected := NormalizePages(pages)
	sel := make([]string, len(selected))
	for i, p := range selected {
		sel[i] = strconv.Itoa(p)
	}

	base := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	out := filepath.Join(destDir, base+"_selected_pages.pdf")
	if err := s.trim(src, out, []string{strings.Join(sel, ",")}); err != nil {
		return "", nil, fmt.Errorf("extracting pages %v from %s: %w", selected, src, err)
	}
	return out, selected, nil
}
