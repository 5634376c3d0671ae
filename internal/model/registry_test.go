// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/pagescribe/pkg/types"
)

func fakeFactory(built *[]types.ModelConfig) Factory {
	return func(cfg types.ModelConfig) (Client, error) {
		*built = append(*built, cfg)
		return &countingClient{}, nil
	}
}

func TestRegistryReusesClients(t *testing.T) {
	var built []types.ModelConfig
	r := &Registry{Factory: fakeFactory(&built)}

	cfg := types.ModelConfig{Provider: types.ProviderOpenAI, Model: "gpt-4o-mini", APIKey: "k1"}
	a, err := r.Client(cfg)
	require.NoError(t, err)
	b, err := r.Client(cfg)
	require.NoError(t, err)
	assert.Same(t, a, b)

	cfg.APIKey = "k2"
	c, err := r.Client(cfg)
	require.NoError(t, err)
	assert.NotSame(t, a, c)

	assert.Equal(t, 2, r.Len())
	require.Len(t, built, 2)
	assert.Equal(t, "k2", built[1].APIKey)
}

func TestRegistriesAreIndependent(t *testing.T) {
	var built []types.ModelConfig
	cfg := types.ModelConfig{Provider: types.ProviderOpenAI, Model: "m", APIKey: "k"}

	r1 := &Registry{Factory: fakeFactory(&built)}
	r2 := &Registry{Factory: fakeFactory(&built)}
	a, err := r1.Client(cfg)
	require.NoError(t, err)
	b, err := r2.Client(cfg)
	require.NoError(t, err)

	assert.NotSame(t, a, b)
	assert.Len(t, built, 2)
}

func TestRegistryResolvesCredentials(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "anthropic-api-key"), []byte("from-file\n"), 0o600))
	t.Setenv("OPENAI_API_KEY", "from-env")

	var built []types.ModelConfig
	r := &Registry{SecretsDir: dir, Factory: fakeFactory(&built)}

	_, err := r.Client(types.ModelConfig{Provider: types.ProviderAnthropic, Model: "claude"})
	require.NoError(t, err)
	_, err = r.Client(types.ModelConfig{Provider: types.ProviderOpenAI, Model: "gpt"})
	require.NoError(t, err)

	require.Len(t, built, 2)
	assert.Equal(t, "from-file", built[0].APIKey)
	assert.Equal(t, "from-env", built[1].APIKey)
}

func TestRegistryMissingCredentials(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	r := NewRegistry(filepath.Join(t.TempDir(), "missing"))

	_, err := r.Client(types.ModelConfig{Provider: types.ProviderAnthropic, Model: "claude"})
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrMissingCredentials)
	assert.Contains(t, err.Error(), "ANTHROPIC_API_KEY")
	assert.Equal(t, 0, r.Len())
}

func TestRegistryAppliesRateLimit(t *testing.T) {
	var built []types.ModelConfig
	r := &Registry{Factory: fakeFactory(&built)}

	c, err := r.Client(types.ModelConfig{Provider: types.ProviderOpenAI, Model: "m", APIKey: "k", RequestsPerMinute: 30})
	require.NoError(t, err)
	_, ok := c.(*rateLimited)
	assert.True(t, ok)
}

func TestNewUnknownProvider(t *testing.T) {
	_, err := New(types.ModelConfig{Provider: "gemini"})
	assert.Error(t, err)

	c, err := New(types.ModelConfig{Provider: types.ProviderAnthropic, APIKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &AnthropicClient{}, c)
}
