// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package model

import (
	"bytes"
	"strings"
	"text/template"
)

// DefaultSystemPrompt asks for a faithful markdown rendering of one page.
const DefaultSystemPrompt = `Convert the following PDF page to markdown.
Return only the markdown with no explanation text. Do not include delimiters like ` + "```markdown" + `.
You must include all information on the page. Do not exclude headers, footers, or subtext.`

// BoundingBoxPrompt is appended to the system prompt when sections are aligned
// against OCR output.
const BoundingBoxPrompt = `For each section (eg: headings, tables, footers, etc.), add a comment "<!-- section -->" at the end of that section in markdown.
Ensure as much content as possible is formatted using markdown where applicable.`

var consistencyPromptTmpl = template.Must(template.New("consistency").Parse(
	"Markdown must maintain consistent formatting with the following page: \n\n \"\"\"{{.}}\"\"\""))

// ConsistencyPrompt seeds a call with the previous page's markdown.
func ConsistencyPrompt(priorPage string) string {
	var buf bytes.Buffer
	// Executing a parsed template with a string argument cannot fail.
	_ = consistencyPromptTmpl.Execute(&buf, priorPage)
	return buf.String()
}

// SystemPrompt returns the system prompt for a run: custom when set,
// otherwise the default, with the section instruction when boundingBox is on.
func SystemPrompt(custom string, boundingBox bool) string {
	prompt := DefaultSystemPrompt
	if strings.TrimSpace(custom) != "" {
		prompt = custom
	}
	if boundingBox {
		prompt += "\n\n" + BoundingBoxPrompt
	}
	return prompt
}
