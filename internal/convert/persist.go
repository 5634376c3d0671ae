// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"fmt"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/pagescribe/pkg/types"
)

// sidecar is the metadata written next to the markdown output.
type sidecar struct {
	FileName     string        `yaml:"file_name"`
	Source       string        `yaml:"source"`
	InputTokens  int           `yaml:"input_tokens"`
	OutputTokens int           `yaml:"output_tokens"`
	Summary      types.Summary `yaml:"summary"`
	Pages        []sidecarPage `yaml:"pages"`
}

type sidecarPage struct {
	Page          int             `yaml:"page"`
	ContentLength int             `yaml:"content_length"`
	Sections      []types.Section `yaml:"sections,omitempty"`
}

// writeOutputs writes <file_name>.md and <file_name>.yaml into dir.
func writeOutputs(dir string, doc *types.DocumentOutput, source, sep string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	mdPath := filepath.Join(dir, doc.FileName+".md")
	if err := os.WriteFile(mdPath, []byte(doc.Markdown(sep)), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", mdPath, err)
	}

	meta := sidecar{
		FileName:     doc.FileName,
		Source:       source,
		InputTokens:  doc.InputTokens,
		OutputTokens: doc.OutputTokens,
		Summary:      doc.Summary,
		Pages:        make([]sidecarPage, len(doc.Pages)),
	}
	for i, p := range doc.Pages {
		meta.Pages[i] = sidecarPage{Page: p.Page, ContentLength: p.ContentLength, Sections: p.Sections}
	}

	data, err := yaml.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}
	yamlPath := filepath.Join(dir, doc.FileName+".yaml")
	if err := os.WriteFile(yamlPath, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", yamlPath, err)
	}
	return nil
}
