// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package model sends page images to vision-capable language models and
// returns their markdown with token usage.
//
// Clients are obtained from a Registry owned by the caller. The Registry
// reuses one client per provider, model and credential for the lifetime of
// the Registry only; there is no package-level client cache.
package model

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/pagescribe/pkg/types"
)

// Client is a vision model that converts one page image to markdown.
type Client interface {
	Completion(ctx context.Context, req CompletionRequest) (types.CompletionResult, error)
}

// CompletionRequest describes one page conversion call.
type CompletionRequest struct {
	// ImagePath is the rendered page image.
	ImagePath string

	// MaintainFormat asks the model to keep formatting consistent with
	// PriorPage. It has no effect when PriorPage is empty.
	MaintainFormat bool

	// PriorPage is the formatted output of the preceding page.
	PriorPage string

	// SystemPrompt replaces DefaultSystemPrompt when non-empty.
	SystemPrompt string
}

func (r CompletionRequest) systemPrompt() string {
	if r.SystemPrompt != "" {
		return r.SystemPrompt
	}
	return DefaultSystemPrompt
}

// consistencyPrompt returns the continuity instruction, or "" when none applies.
func (r CompletionRequest) consistencyPrompt() string {
	if !r.MaintainFormat || r.PriorPage == "" {
		return ""
	}
	return ConsistencyPrompt(r.PriorPage)
}

// encodedImage is a base64 page image with its media type.
type encodedImage struct {
	MediaType string
	Data      string
}

func (e encodedImage) dataURL() string {
	return "data:" + e.MediaType + ";base64," + e.Data
}

func encodeImage(path string) (encodedImage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return encodedImage{}, fmt.Errorf("reading page image %s: %w", path, err)
	}
	mt := "image/png"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		mt = "image/jpeg"
	}
	return encodedImage{MediaType: mt, Data: base64.StdEncoding.EncodeToString(data)}, nil
}

// classify maps a non-success API status to a *types.ModelError with the
// matching error kind.
func classify(status int, message string) error {
	var kind error
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		kind = types.ErrModelAccessDenied
	case http.StatusBadRequest:
		if strings.Contains(strings.ToLower(message), "image") {
			kind = types.ErrNotAVisionModel
		}
	}
	return &types.ModelError{StatusCode: status, Message: message, Kind: kind}
}

// New builds a client for cfg. cfg.APIKey must already be resolved.
func New(cfg types.ModelConfig) (Client, error) {
	switch cfg.Provider {
	case types.ProviderOpenAI, "":
		return NewOpenAI(cfg), nil
	case types.ProviderAnthropic:
		return NewAnthropic(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported model provider %q", cfg.Provider)
	}
}
