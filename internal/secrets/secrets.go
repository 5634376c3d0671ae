// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads model API keys from a directory of plain-text files.
// Each file in the directory represents one secret: the filename is the key
// name and the file contents (trimmed) are the value.
//
// Supported key files: openai-api-key, anthropic-api-key.
package secrets

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// DefaultDir is the secrets directory used when none is configured.
const DefaultDir = ".secrets"

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory or missing files are not errors; Load returns an empty map.
// Unreadable files are logged at Warn on log and skipped; a nil log discards
// the warnings.
func Load(dir string, log logrus.FieldLogger) (map[string]string, error) {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			log.WithField("secret", name).WithError(err).Warn("could not read secret")
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}

// Source reports where a resolved credential came from.
type Source string

const (
	SourceConfig  Source = "config"
	SourceFile    Source = "file"
	SourceEnv     Source = "env"
	SourceMissing Source = ""
)

// Resolve returns the first non-empty value among explicit, the secret file
// name in dir, and the environment variable envKey, with its source.
func Resolve(explicit, dir, name, envKey string, log logrus.FieldLogger) (string, Source, error) {
	if v := strings.TrimSpace(explicit); v != "" {
		return v, SourceConfig, nil
	}
	if dir != "" && name != "" {
		s, err := Load(dir, log)
		if err != nil {
			return "", SourceMissing, err
		}
		if v, ok := s[name]; ok {
			return v, SourceFile, nil
		}
	}
	if envKey != "" {
		if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
			return v, SourceEnv, nil
		}
	}
	return "", SourceMissing, nil
}
