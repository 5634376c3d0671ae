// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Concrete errors below unwrap to one of these so callers can
// test with errors.Is.
var (
	ErrMissingCredentials   = errors.New("missing model credentials")
	ErrFileUnavailable      = errors.New("file path is invalid or missing")
	ErrResourceUnreachable  = errors.New("file not found or unreachable")
	ErrPageNumberOutOfBound = errors.New("page number out of bound")
	ErrModelAccessDenied    = errors.New("model cannot be accessed")
	ErrNotAVisionModel      = errors.New("model is not a vision model")
	ErrAlignment            = errors.New("bounding box alignment failed")
	ErrProcessing           = errors.New("failed to process page")
)

// PageNumberOutOfBoundError reports every requested page outside [1, TotalPages].
type PageNumberOutOfBoundError struct {
	TotalPages int
	Requested  []int
	Invalid    []int
}

func (e *PageNumberOutOfBoundError) Error() string {
	return fmt.Sprintf("%v: document has %d pages, invalid page numbers %s",
		ErrPageNumberOutOfBound, e.TotalPages, joinInts(e.Invalid))
}

func (e *PageNumberOutOfBoundError) Unwrap() error { return ErrPageNumberOutOfBound }

// ResourceUnreachableError reports a remote fetch that did not return 200.
type ResourceUnreachableError struct {
	URL        string
	StatusCode int
}

func (e *ResourceUnreachableError) Error() string {
	return fmt.Sprintf("%v: %s returned status %d", ErrResourceUnreachable, e.URL, e.StatusCode)
}

func (e *ResourceUnreachableError) Unwrap() error { return ErrResourceUnreachable }

// AlignmentError wraps the cause of a failed section alignment.
type AlignmentError struct {
	Cause error
}

func (e *AlignmentError) Error() string {
	return fmt.Sprintf("%v: %v", ErrAlignment, e.Cause)
}

func (e *AlignmentError) Unwrap() []error { return []error{ErrAlignment, e.Cause} }

// ProcessingError reports a page whose model call failed after all retries.
type ProcessingError struct {
	Page  int
	Cause error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("%v %d: %v", ErrProcessing, e.Page, e.Cause)
}

func (e *ProcessingError) Unwrap() []error { return []error{ErrProcessing, e.Cause} }

// ModelError is a non-success response from a model API. Kind is one of
// ErrModelAccessDenied, ErrNotAVisionModel or nil for other failures.
type ModelError struct {
	StatusCode int
	Message    string
	Kind       error
}

func (e *ModelError) Error() string {
	if e.Kind != nil {
		return fmt.Sprintf("%v: model API returned status %d: %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("model API returned status %d: %s", e.StatusCode, e.Message)
}

func (e *ModelError) Unwrap() error { return e.Kind }

func joinInts(ns []int) string {
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = fmt.Sprint(n)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
