// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "strings"

// BoundingBox is a rectangle normalized to the page image: every field is a
// fraction of the image width (Left, Width) or height (Top, Height).
type BoundingBox struct {
	Left   float64 `json:"left" yaml:"left"`
	Top    float64 `json:"top" yaml:"top"`
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// Section is a model-identified content region within a page. BoundingBox is
// nil when the section could not be aligned to the OCR output.
type Section struct {
	Content     string       `json:"content" yaml:"content"`
	BoundingBox *BoundingBox `json:"bounding_box,omitempty" yaml:"bounding_box,omitempty"`
}

// Page holds the markdown produced for one source page.
type Page struct {
	// Content is the formatted markdown for the page.
	Content string `json:"content" yaml:"content"`

	// ContentLength is the length of Content in characters.
	ContentLength int `json:"content_length" yaml:"content_length"`

	// Page is the 1-based source page number.
	Page int `json:"page" yaml:"page"`

	// Sections is populated only in bounding-box mode.
	Sections []Section `json:"sections,omitempty" yaml:"sections,omitempty"`
}

// Summary counts page outcomes for a run.
type Summary struct {
	TotalPages  int   `json:"total_pages" yaml:"total_pages"`
	Successful  int   `json:"successful" yaml:"successful"`
	Failed      int   `json:"failed" yaml:"failed"`
	FailedPages []int `json:"failed_pages,omitempty" yaml:"failed_pages,omitempty"`
}

// DocumentOutput is the result of one pipeline run.
type DocumentOutput struct {
	// CompletionTimeMs spans the whole run, in milliseconds.
	CompletionTimeMs float64 `json:"completion_time" yaml:"completion_time"`
	FileName         string  `json:"file_name" yaml:"file_name"`
	InputTokens      int     `json:"input_tokens" yaml:"input_tokens"`
	OutputTokens     int     `json:"output_tokens" yaml:"output_tokens"`
	Pages            []Page  `json:"pages" yaml:"pages"`
	Summary          Summary `json:"summary" yaml:"summary"`
}

// Markdown joins the non-empty page contents with sep.
func (d *DocumentOutput) Markdown(sep string) string {
	parts := make([]string, 0, len(d.Pages))
	for _, p := range d.Pages {
		if p.Content != "" {
			parts = append(parts, p.Content)
		}
	}
	return strings.Join(parts, sep)
}

// CompletionResult is the response to a single model invocation.
type CompletionResult struct {
	Content      string `json:"content" yaml:"content"`
	InputTokens  int    `json:"input_tokens" yaml:"input_tokens"`
	OutputTokens int    `json:"output_tokens" yaml:"output_tokens"`
}
