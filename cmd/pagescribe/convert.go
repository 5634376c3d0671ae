// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/pagescribe/internal/convert"
	"github.com/pdiddy/pagescribe/internal/secrets"
	"github.com/pdiddy/pagescribe/pkg/types"
)

var convertCmd = &cobra.Command{
	Use:   "convert <file-or-url>",
	Short: "Convert a PDF or image to markdown",
	Long: `Convert downloads or copies the document into a private working
directory, renders each selected page to an image and sends every image to
the vision model. The markdown is printed to stdout, or written to
--output-dir as <name>.md with a <name>.yaml metadata sidecar.

Every flag can also be set in the config file or as a PAGESCRIBE_*
environment variable (for example PAGESCRIBE_MODEL_MODEL).`,
	Args: cobra.ExactArgs(1),
	RunE: runConvert,
}

// convertFlags maps each flag to its config key.
var convertFlags = map[string]string{
	"concurrency":     "concurrency",
	"maintain-format": "maintain_format",
	"bounding-box":    "bounding_box",
	"pages":           "select_pages",
	"temp-dir":        "temp_dir",
	"output-dir":      "output_dir",
	"db":              "database_path",
	"keep-temp":       "keep_temp",
	"separator":       "separator",
	"system-prompt":   "custom_system_prompt",
	"error-mode":      "error_mode",
	"secrets-dir":     "secrets_dir",
	"provider":        "model.provider",
	"model":           "model.model",
	"base-url":        "model.base_url",
	"max-tokens":      "model.max_tokens",
	"timeout":         "model.timeout",
	"max-retries":     "model.max_retries",
	"rpm":             "model.requests_per_minute",
	"dpi":             "render.dpi",
	"format":          "render.format",
	"min-height":      "render.min_height",
	"max-height":      "render.max_height",
	"threads":         "render.thread_count",
}

func init() {
	f := convertCmd.Flags()
	f.Int("concurrency", types.DefaultConcurrency, "maximum pages converted at once")
	f.Bool("maintain-format", false, "convert pages in order, passing each page's markdown to the next call")
	f.Bool("bounding-box", false, "locate each section on the page image with OCR")
	f.IntSlice("pages", nil, "1-based page numbers to convert (default: all)")
	f.String("temp-dir", "", "parent directory for the working directory (default: system temp)")
	f.String("output-dir", "", "write <name>.md and <name>.yaml here instead of printing")
	f.String("db", "", "SQLite database that receives the converted pages")
	f.Bool("keep-temp", false, "keep rendered page images after the run")
	f.String("separator", types.DefaultSeparator, "text placed between pages")
	f.String("system-prompt", "", "replace the default system prompt")
	f.String("error-mode", string(types.ErrorModeIgnore), "page failure policy: ignore or throw")
	f.String("secrets-dir", secrets.DefaultDir, "directory holding API key files")
	f.String("provider", string(types.ProviderOpenAI), "model API: openai or anthropic")
	f.String("model", types.DefaultModel, "vision model name")
	f.String("base-url", "", "override the model API endpoint")
	f.Int("max-tokens", types.DefaultMaxTokens, "completion token limit per page")
	f.Duration("timeout", types.DefaultTimeout, "timeout for a single model call")
	f.Int("max-retries", types.DefaultMaxRetries, "additional attempts for a failed model call")
	f.Int("rpm", 0, "model requests per minute across all pages (0 = unlimited)")
	f.Int("dpi", types.DefaultDPI, "render resolution")
	f.String("format", types.DefaultImageFormat, "page image format: png or jpeg")
	f.Int("min-height", 0, "minimum page image height in pixels (0 = none)")
	f.Int("max-height", types.DefaultMaxHeight, "maximum page image height in pixels (negative = no cap)")
	f.Int("threads", types.DefaultThreadCount, "concurrent renderer processes")
	f.Bool("json", false, "print the full result as JSON")

	for flag, key := range convertFlags {
		_ = viper.BindPFlag(key, f.Lookup(flag))
	}

	rootCmd.AddCommand(convertCmd)
}

// runConfig builds the run configuration from flags, config file and
// environment, in viper's precedence order.
func runConfig(v *viper.Viper, filePath string) types.RunConfig {
	return types.RunConfig{
		FilePath:           filePath,
		Concurrency:        v.GetInt("concurrency"),
		MaintainFormat:     v.GetBool("maintain_format"),
		BoundingBox:        v.GetBool("bounding_box"),
		SelectPages:        v.GetIntSlice("select_pages"),
		TempDir:            v.GetString("temp_dir"),
		OutputDir:          v.GetString("output_dir"),
		DatabasePath:       v.GetString("database_path"),
		Cleanup:            !v.GetBool("keep_temp"),
		Separator:          v.GetString("separator"),
		CustomSystemPrompt: v.GetString("custom_system_prompt"),
		ErrorMode:          types.ErrorMode(v.GetString("error_mode")),
		SecretsDir:         v.GetString("secrets_dir"),
		Model: types.ModelConfig{
			Provider:          types.ModelProvider(v.GetString("model.provider")),
			Model:             v.GetString("model.model"),
			APIKey:            v.GetString("model.api_key"),
			BaseURL:           v.GetString("model.base_url"),
			MaxTokens:         v.GetInt("model.max_tokens"),
			Timeout:           v.GetDuration("model.timeout"),
			MaxRetries:        v.GetInt("model.max_retries"),
			RequestsPerMinute: v.GetInt("model.requests_per_minute"),
		},
		Render: types.RenderConfig{
			DPI:         v.GetInt("render.dpi"),
			Format:      v.GetString("render.format"),
			MinHeight:   v.GetInt("render.min_height"),
			MaxHeight:   v.GetInt("render.max_height"),
			ThreadCount: v.GetInt("render.thread_count"),
		},
	}
}

func runConvert(cmd *cobra.Command, args []string) error {
	cfg := runConfig(viper.GetViper(), args[0])

	pipeline := convert.NewPipeline(logrus.StandardLogger())
	pipeline.Progress = os.Stderr

	doc, err := pipeline.Run(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	switch {
	case jsonOutput:
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case cfg.OutputDir == "":
		fmt.Println(doc.Markdown(cfg.Separator))
	}

	logrus.WithFields(logrus.Fields{
		"file":          doc.FileName,
		"pages":         len(doc.Pages),
		"input_tokens":  doc.InputTokens,
		"output_tokens": doc.OutputTokens,
		"elapsed_ms":    doc.CompletionTimeMs,
	}).Info("conversion complete")
	return nil
}
