// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pdf

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/pagescribe/pkg/types"
)

func TestNormalizePages(t *testing.T) {
	in := []int{5, 2, 2, 9, 1}
	assert.Equal(t, []int{1, 2, 5, 9}, NormalizePages(in))
	assert.Equal(t, []int{5, 2, 2, 9, 1}, in, "input must not be reordered")
}

func TestValidatePages(t *testing.T) {
	tests := []struct {
		name    string
		pages   []int
		total   int
		invalid []int
	}{
		{name: "all valid", pages: []int{1, 3, 5}, total: 5},
		{name: "zero and negative", pages: []int{0, 2, -1}, total: 5, invalid: []int{-1, 0}},
		{name: "past the end", pages: []int{1, 6, 9, 6}, total: 5, invalid: []int{6, 9}},
		{name: "empty document", pages: []int{1}, total: 0, invalid: []int{1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePages(tt.pages, tt.total)
			if tt.invalid == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, types.ErrPageNumberOutOfBound)
			var pe *types.PageNumberOutOfBoundError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.invalid, pe.Invalid)
			assert.Equal(t, tt.total, pe.TotalPages)
			assert.Equal(t, tt.pages, pe.Requested)
		})
	}
}

func TestSelectorSelect(t *testing.T) {
	var gotIn, gotOut string
	var gotPages []string
	s := &Selector{
		count: func(string) (int, error) { return 10, nil },
		trim: func(in, out string, pages []string) error {
			gotIn, gotOut, gotPages = in, out, pages
			return nil
		},
	}

	dir := t.TempDir()
	out, selected, err := s.Select("/docs/report.pdf", []int{7, 2, 7}, dir)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "report_selected_pages.pdf"), out)
	assert.Equal(t, []int{2, 7}, selected)
	assert.Equal(t, "/docs/report.pdf", gotIn)
	assert.Equal(t, out, gotOut)
	assert.Equal(t, []string{"2,7"}, gotPages)
}

func TestSelectorOutOfBoundLeavesSourceUntouched(t *testing.T) {
	trimmed := false
	s := &Selector{
		count: func(string) (int, error) { return 3, nil },
		trim: func(string, string, []string) error {
			trimmed = true
			return nil
		},
	}

	_, _, err := s.Select("/docs/report.pdf", []int{0, 2, 4}, t.TempDir())
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrPageNumberOutOfBound)
	assert.Contains(t, err.Error(), "[0, 4]")
	assert.False(t, trimmed)
}

func TestSelectorPropagatesErrors(t *testing.T) {
	s := &Selector{
		count: func(string) (int, error) { return 0, errors.New("corrupt xref") },
	}
	_, _, err := s.Select("/docs/bad.pdf", []int{1}, t.TempDir())
	assert.ErrorContains(t, err, "corrupt xref")
}
