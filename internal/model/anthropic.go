// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package model

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/pdiddy/pagescribe/pkg/types"
)

// AnthropicClient calls the Messages API with the page image as a base64
// image block.
type AnthropicClient struct {
	client      anthropic.Client
	model       string
	maxTokens   int
	temperature *float64
}

// NewAnthropic returns a client for cfg with SDK-level retries disabled.
func NewAnthropic(cfg types.ModelConfig) *AnthropicClient {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = types.DefaultMaxTokens
	}
	return &AnthropicClient{
		client:      anthropic.NewClient(opts...),
		model:       cfg.Model,
		maxTokens:   maxTokens,
		temperature: cfg.Temperature,
	}
}

// Completion sends one page image and returns the concatenated text blocks.
func (c *AnthropicClient) Completion(ctx context.Context, req CompletionRequest) (types.CompletionResult, error) {
	img, err := encodeImage(req.ImagePath)
	if err != nil {
		return types.CompletionResult{}, err
	}

	system := []anthropic.TextBlockParam{{Text: req.systemPrompt()}}
	if cp := req.consistencyPrompt(); cp != "" {
		system = append(system, anthropic.TextBlockParam{Text: cp})
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(c.maxTokens),
		System:    system,
		Messages: []anthropic.MessageParam{
			{
				Role: anthropic.MessageParamRoleUser,
				Content: []anthropic.ContentBlockParamUnion{
					anthropic.NewImageBlockBase64(img.MediaType, img.Data),
				},
			},
		},
	}
	if c.temperature != nil {
		params.Temperature = anthropic.Float(*c.temperature)
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return types.CompletionResult{}, classify(apiErr.StatusCode, apiErr.Error())
		}
		return types.CompletionResult{}, fmt.Errorf("anthropic completion: %w", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			sb.WriteString(b.Text)
		}
	}

	return types.CompletionResult{
		Content:      sb.String(),
		InputTokens:  int(msg.Usage.InputTokens),
		OutputTokens: int(msg.Usage.OutputTokens),
	}, nil
}
