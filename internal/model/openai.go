// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package model

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/pdiddy/pagescribe/pkg/types"
)

// OpenAIClient calls the chat completions API with the page image as a
// base64 data URL. BaseURL in the config points it at compatible gateways.
type OpenAIClient struct {
	client      openai.Client
	model       string
	maxTokens   int
	temperature *float64
}

// NewOpenAI returns a client for cfg. SDK-level retries are disabled; the
// page worker owns the retry policy.
func NewOpenAI(cfg types.ModelConfig) *OpenAIClient {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAIClient{
		client:      openai.NewClient(opts...),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}
}

// Completion sends one page image and returns the model's markdown.
func (c *OpenAIClient) Completion(ctx context.Context, req CompletionRequest) (types.CompletionResult, error) {
	img, err := encodeImage(req.ImagePath)
	if err != nil {
		return types.CompletionResult{}, err
	}

	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(req.systemPrompt()),
	}
	if cp := req.consistencyPrompt(); cp != "" {
		messages = append(messages, openai.SystemMessage(cp))
	}
	messages = append(messages, openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
		openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: img.dataURL()}),
	}))

	params := openai.ChatCompletionNewParams{
		Model:    c.model,
		Messages: messages,
	}
	if c.maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(c.maxTokens))
	}
	if c.temperature != nil {
		params.Temperature = openai.Float(*c.temperature)
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return types.CompletionResult{}, classify(apiErr.StatusCode, apiErr.Error())
		}
		return types.CompletionResult{}, fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return types.CompletionResult{}, fmt.Errorf("openai completion: no choices returned")
	}

	return types.CompletionResult{
		Content:      resp.Choices[0].Message.Content,
		InputTokens:  int(resp.Usage.PromptTokens),
		OutputTokens: int(resp.Usage.CompletionTokens),
	}, nil
}
