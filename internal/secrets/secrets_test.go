// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package secrets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(t *testing.T) string
		want   map[string]string
		errMsg string
	}{
		{
			name: "reads key files and trims whitespace",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, "openai-api-key", "  sk-abc123  \n")
				writeFile(t, dir, "anthropic-api-key", "sk-ant-xyz789\n")
				return dir
			},
			want: map[string]string{
				"openai-api-key":    "sk-abc123",
				"anthropic-api-key": "sk-ant-xyz789",
			},
		},
		{
			name: "returns empty map for nonexistent directory",
			setup: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "does-not-exist")
			},
			want: map[string]string{},
		},
		{
			name: "skips empty files",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, "anthropic-api-key", "valid-key")
				writeFile(t, dir, "empty-key", "")
				writeFile(t, dir, "whitespace-only", "   \n\t  ")
				return dir
			},
			want: map[string]string{
				"anthropic-api-key": "valid-key",
			},
		},
		{
			name: "skips dotfiles",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, ".gitkeep", "")
				writeFile(t, dir, ".hidden-key", "secret")
				writeFile(t, dir, "openai-api-key", "sk-real")
				return dir
			},
			want: map[string]string{
				"openai-api-key": "sk-real",
			},
		},
		{
			name: "skips subdirectories",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, "anthropic-api-key", "ak_123")
				require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir"), 0o755))
				return dir
			},
			want: map[string]string{
				"anthropic-api-key": "ak_123",
			},
		},
		{
			name: "returns empty map for empty directory",
			setup: func(t *testing.T) string {
				return t.TempDir()
			},
			want: map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := tt.setup(t)
			got, err := Load(dir, nil)
			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadUnreadableFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "good-key", "value123")

	// A dangling symlink cannot be read, even by root.
	require.NoError(t, os.Symlink(filepath.Join(dir, "gone"), filepath.Join(dir, "bad-key")))

	log, hook := test.NewNullLogger()
	got, err := Load(dir, log)
	require.NoError(t, err)
	assert.Equal(t, "value123", got["good-key"])
	_, hasBad := got["bad-key"]
	assert.False(t, hasBad, "unreadable file should not appear in result")

	require.Len(t, hook.AllEntries(), 1)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, "bad-key", hook.LastEntry().Data["secret"])
}

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "openai-api-key", "from-file")

	tests := []struct {
		name       string
		explicit   string
		dir        string
		env        string
		wantValue  string
		wantSource Source
	}{
		{name: "explicit wins", explicit: "from-config", dir: dir, env: "from-env", wantValue: "from-config", wantSource: SourceConfig},
		{name: "file before env", dir: dir, env: "from-env", wantValue: "from-file", wantSource: SourceFile},
		{name: "env when no file", dir: filepath.Join(dir, "missing"), env: "from-env", wantValue: "from-env", wantSource: SourceEnv},
		{name: "nothing configured", dir: filepath.Join(dir, "missing"), wantValue: "", wantSource: SourceMissing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("PAGESCRIBE_TEST_KEY", tt.env)
			got, src, err := Resolve(tt.explicit, tt.dir, "openai-api-key", "PAGESCRIBE_TEST_KEY", nil)
			require.NoError(t, err)
			assert.Equal(t, tt.wantValue, got)
			assert.Equal(t, tt.wantSource, src)
		})
	}
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}
