// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package model

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/pdiddy/pagescribe/internal/secrets"
	"github.com/pdiddy/pagescribe/pkg/types"
)

// Factory builds a client from a config with a resolved API key.
type Factory func(cfg types.ModelConfig) (Client, error)

type registryKey struct {
	provider types.ModelProvider
	model    string
	baseURL  string
	apiKey   string
	rpm      int
}

// Registry hands out model clients, reusing one per provider, model,
// endpoint and credential. A Registry is safe for concurrent use.
type Registry struct {
	// SecretsDir is searched for <provider>-api-key files.
	SecretsDir string

	// Factory builds new clients. Nil uses New.
	Factory Factory

	// Log receives warnings about unreadable secret files. Nil discards them.
	Log logrus.FieldLogger

	mu      sync.Mutex
	clients map[registryKey]Client
}

// NewRegistry returns an empty registry reading keys from secretsDir.
func NewRegistry(secretsDir string) *Registry {
	return &Registry{SecretsDir: secretsDir}
}

// APIKey resolves the credential for cfg from the config, the secrets
// directory, then the provider environment variable.
func (r *Registry) APIKey(cfg types.ModelConfig) (string, error) {
	key, _, err := secrets.Resolve(cfg.APIKey, r.SecretsDir, cfg.SecretName(), cfg.EnvKey(), r.Log)
	if err != nil {
		return "", err
	}
	if key == "" {
		return "", fmt.Errorf("%w: set model.api_key, %s in the secrets directory or %s",
			types.ErrMissingCredentials, cfg.SecretName(), cfg.EnvKey())
	}
	return key, nil
}

// Client returns the client for cfg, creating it on first use.
func (r *Registry) Client(cfg types.ModelConfig) (Client, error) {
	key, err := r.APIKey(cfg)
	if err != nil {
		return nil, err
	}
	cfg.APIKey = key

	k := registryKey{
		provider: cfg.Provider,
		model:    cfg.Model,
		baseURL:  cfg.BaseURL,
		apiKey:   key,
		rpm:      cfg.RequestsPerMinute,
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.clients[k]; ok {
		return c, nil
	}

	factory := r.Factory
	if factory == nil {
		factory = New
	}
	c, err := factory(cfg)
	if err != nil {
		return nil, err
	}
	c = WithRateLimit(c, cfg.RequestsPerMinute)

	if r.clients == nil {
		r.clients = make(map[registryKey]Client)
	}
	r.clients[k] = c
	return c, nil
}

// Len returns the number of cached clients.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}
