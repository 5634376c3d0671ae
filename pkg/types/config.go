// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"os"
	"time"
)

// ModelProvider identifies the vision model API.
type ModelProvider string

const (
	ProviderOpenAI    ModelProvider = "openai"
	ProviderAnthropic ModelProvider = "anthropic"
)

// ErrorMode selects what happens when a single page fails.
type ErrorMode string

const (
	// ErrorModeIgnore logs the failure and drops the page from the output.
	ErrorModeIgnore ErrorMode = "ignore"

	// ErrorModeThrow aborts the run on the first page failure.
	ErrorModeThrow ErrorMode = "throw"
)

const (
	DefaultConcurrency = 10
	DefaultSeparator   = "\n\n"
	DefaultModel       = "gpt-4o-mini"
	DefaultMaxTokens   = 4096
	DefaultMaxRetries  = 1
	DefaultTimeout     = 240 * time.Second

	DefaultDPI         = 300
	DefaultImageFormat = "png"
	DefaultMaxHeight   = 1056
	DefaultThreadCount = 4
)

// ModelConfig holds settings for the vision model client.
type ModelConfig struct {
	// Provider selects the model API: openai or anthropic.
	Provider ModelProvider `json:"provider" yaml:"provider"`

	// Model is the model identifier (e.g. "gpt-4o-mini").
	Model string `json:"model" yaml:"model"`

	// APIKey is the authentication key. When empty, the key is resolved from
	// the secrets directory or the provider environment variable.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// BaseURL overrides the provider endpoint (OpenAI-compatible gateways).
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	// MaxTokens caps the completion length.
	MaxTokens int `json:"max_tokens" yaml:"max_tokens"`

	// Temperature is passed through when non-nil.
	Temperature *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`

	// Timeout bounds a single model call.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// MaxRetries is the number of additional attempts for a failed call.
	// DefaultRunConfig sets DefaultMaxRetries; zero means a single attempt.
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// RequestsPerMinute paces model calls across all workers (0 disables).
	RequestsPerMinute int `json:"requests_per_minute" yaml:"requests_per_minute"`
}

// EnvKey returns the environment variable consulted for the provider's API key.
func (m ModelConfig) EnvKey() string {
	switch m.Provider {
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	default:
		return "OPENAI_API_KEY"
	}
}

// SecretName returns the secrets-directory file name for the provider's API key.
func (m ModelConfig) SecretName() string {
	return string(m.Provider) + "-api-key"
}

// RenderConfig holds rasterization settings.
type RenderConfig struct {
	// DPI is the render resolution.
	DPI int `json:"dpi" yaml:"dpi"`

	// Format is the image format written to the temp directory.
	Format string `json:"format" yaml:"format"`

	// MinHeight is the smallest rendered page height in pixels. Zero or
	// negative disables the bound.
	MinHeight int `json:"min_height" yaml:"min_height"`

	// MaxHeight caps the rendered page height in pixels. Zero means
	// DefaultMaxHeight; a negative value disables the cap.
	MaxHeight int `json:"max_height" yaml:"max_height"`

	// ThreadCount bounds the number of concurrent renderer processes.
	ThreadCount int `json:"thread_count" yaml:"thread_count"`
}

// RunConfig holds the settings for one pipeline invocation. A RunConfig is
// never mutated by the pipeline; every run is independent.
type RunConfig struct {
	// FilePath is a local path or http(s) URL of the document.
	FilePath string `json:"file_path" yaml:"file_path"`

	// Concurrency caps simultaneous page-processing tasks in independent mode.
	Concurrency int `json:"concurrency" yaml:"concurrency"`

	// MaintainFormat processes pages sequentially, seeding each call with the
	// previous page's output.
	MaintainFormat bool `json:"maintain_format" yaml:"maintain_format"`

	// BoundingBox enables section alignment against OCR output.
	BoundingBox bool `json:"bounding_box" yaml:"bounding_box"`

	// SelectPages restricts processing to these 1-based page numbers.
	SelectPages []int `json:"select_pages,omitempty" yaml:"select_pages,omitempty"`

	// TempDir is the parent of the per-run working directory.
	TempDir string `json:"temp_dir" yaml:"temp_dir"`

	// OutputDir receives <file_name>.md and <file_name>.yaml when set.
	OutputDir string `json:"output_dir,omitempty" yaml:"output_dir,omitempty"`

	// DatabasePath receives the run's pages in SQLite when set.
	DatabasePath string `json:"database_path,omitempty" yaml:"database_path,omitempty"`

	// Cleanup removes the working directory after aggregation.
	Cleanup bool `json:"cleanup" yaml:"cleanup"`

	// Separator joins page contents in the aggregated markdown.
	Separator string `json:"separator" yaml:"separator"`

	// CustomSystemPrompt replaces the default system prompt.
	CustomSystemPrompt string `json:"custom_system_prompt,omitempty" yaml:"custom_system_prompt,omitempty"`

	// ErrorMode selects the per-page failure policy.
	ErrorMode ErrorMode `json:"error_mode" yaml:"error_mode"`

	// SecretsDir is consulted for API keys not set in Model.
	SecretsDir string `json:"secrets_dir,omitempty" yaml:"secrets_dir,omitempty"`

	Model  ModelConfig  `json:"model" yaml:"model"`
	Render RenderConfig `json:"render" yaml:"render"`

	// PostProcess transforms each raw model response. Nil uses the default
	// code-fence stripping.
	PostProcess func(string) string `json:"-" yaml:"-"`
}

// DefaultRunConfig returns a RunConfig populated with defaults.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		Cleanup: true,
		Model:   ModelConfig{MaxRetries: DefaultMaxRetries},
	}.WithDefaults()
}

// WithDefaults returns a copy of c with zero values replaced by defaults.
// Cleanup is a plain bool and is left as set.
func (c RunConfig) WithDefaults() RunConfig {
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.TempDir == "" {
		c.TempDir = os.TempDir()
	}
	if c.Separator == "" {
		c.Separator = DefaultSeparator
	}
	if c.ErrorMode == "" {
		c.ErrorMode = ErrorModeIgnore
	}
	if c.Model.Provider == "" {
		c.Model.Provider = ProviderOpenAI
	}
	if c.Model.Model == "" {
		c.Model.Model = DefaultModel
	}
	if c.Model.MaxTokens <= 0 {
		c.Model.MaxTokens = DefaultMaxTokens
	}
	if c.Model.Timeout <= 0 {
		c.Model.Timeout = DefaultTimeout
	}
	if c.Model.MaxRetries < 0 {
		c.Model.MaxRetries = 0
	}
	if c.Render.DPI <= 0 {
		c.Render.DPI = DefaultDPI
	}
	if c.Render.Format == "" {
		c.Render.Format = DefaultImageFormat
	}
	if c.Render.MaxHeight == 0 {
		c.Render.MaxHeight = DefaultMaxHeight
	}
	if c.Render.ThreadCount <= 0 {
		c.Render.ThreadCount = DefaultThreadCount
	}
	return c
}

// Validate checks value ranges. It does not touch the filesystem.
func (c RunConfig) Validate() error {
	switch c.ErrorMode {
	case ErrorModeIgnore, ErrorModeThrow:
	default:
		return fmt.Errorf("invalid error mode %q: must be %q or %q", c.ErrorMode, ErrorModeIgnore, ErrorModeThrow)
	}
	switch c.Model.Provider {
	case ProviderOpenAI, ProviderAnthropic:
	default:
		return fmt.Errorf("invalid model provider %q", c.Model.Provider)
	}
	if c.Render.MinHeight > 0 && c.Render.MaxHeight > 0 && c.Render.MinHeight > c.Render.MaxHeight {
		return fmt.Errorf("render min height %d exceeds max height %d", c.Render.MinHeight, c.Render.MaxHeight)
	}
	if c.Model.RequestsPerMinute < 0 {
		return fmt.Errorf("requests per minute must not be negative")
	}
	return nil
}
