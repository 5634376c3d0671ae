// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
)

var (
	reLangFence  = regexp.MustCompile("(?s)^```[a-z]*\n(.*?)\n```$")
	rePlainFence = regexp.MustCompile("(?s)^```\n(.*?)\n```$")
)

// FormatMarkdown strips a code fence that wraps the whole response, such as
// ```markdown ... ```. Fences inside the content are kept.
func FormatMarkdown(text string) string {
	text = strings.TrimSpace(text)
	text = reLangFence.ReplaceAllString(text, "$1")
	return rePlainFence.ReplaceAllString(text, "$1")
}

// FileName derives the output name from a local path: the base name without
// extension, lowercased, with every non-alphanumeric rune replaced by '_'.
func FileName(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return '_'
	}, base)
}

// isImage reports whether path is an image that can be sent to the model
// without rasterization.
func isImage(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".jpg", ".jpeg":
		return true
	}
	return false
}
