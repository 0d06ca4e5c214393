// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package ai

import (
	"errors"
	"strings"
	"time"
)

// Mode selects the embedding backend flavor. Local backends run an
// OpenAI-compatible server on the same machine (Ollama, LocalAI); remote
// backends call a hosted embedding service over the network.
type Mode string

const (
	ModeLocal  Mode = "local"
	ModeRemote Mode = "remote"
)

// Default embedding concurrency by mode. Local models are CPU/GPU bound so
// a low ceiling avoids thrashing; remote services tolerate more in-flight
// requests.
const (
	DefaultLocalConcurrency  = 2
	DefaultRemoteConcurrency = 8
)

// Config holds configuration for the embedding client.
type Config struct {
	// Host is the base URL of the embedding service API.
	// Example: "http://localhost:11434/v1" for a local OpenAI-compatible server
	Host string

	// Model is the model identifier to use for text embeddings.
	// Example: "embeddinggemma", "text-embedding-3-small"
	Model string

	// APIKey authenticates remote calls. Ignored by local backends.
	APIKey string

	// Mode selects the backend flavor and its concurrency default.
	Mode Mode

	// MaxRetries is the number of retries after the first failed attempt for
	// transient errors. Default: 3
	MaxRetries int

	// RetryDelay is the base backoff delay; it doubles on each retry.
	// Default: 1s
	RetryDelay time.Duration

	// Concurrency caps in-flight embedding batches. Zero selects the mode
	// default.
	Concurrency int
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithHost sets the embedding service host URL.
func WithHost(host string) ConfigOption {
	return func(c *Config) {
		c.Host = host
	}
}

// WithModel sets the embedding model identifier.
func WithModel(model string) ConfigOption {
	return func(c *Config) {
		c.Model = model
	}
}

// WithAPIKey sets the API key for remote backends.
func WithAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.APIKey = key
	}
}

// WithMode selects the backend flavor.
func WithMode(mode Mode) ConfigOption {
	return func(c *Config) {
		c.Mode = mode
	}
}

// WithMaxRetries sets the retry budget for transient failures.
func WithMaxRetries(n int) ConfigOption {
	return func(c *Config) {
		c.MaxRetries = n
	}
}

// WithRetryDelay sets the base backoff delay.
func WithRetryDelay(d time.Duration) ConfigOption {
	return func(c *Config) {
		c.RetryDelay = d
	}
}

// WithConcurrency caps in-flight embedding batches.
func WithConcurrency(n int) ConfigOption {
	return func(c *Config) {
		c.Concurrency = n
	}
}

// DefaultConfig returns a Config with sensible defaults for a local
// OpenAI-compatible embedding server.
func DefaultConfig() *Config {
	return &Config{
		Host:       "http://localhost:11434/v1",
		Model:      "embeddinggemma",
		Mode:       ModeLocal,
		MaxRetries: 3,
		RetryDelay: time.Second,
	}
}

// NewConfig creates a Config with the default values and applies the
// provided options.
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize ensures the configuration is in a canonical form. It adds the
// /v1 suffix to the host if missing, which is required by most
// OpenAI-compatible APIs (Ollama, LocalAI, vLLM, etc), and resolves the
// concurrency default from the mode.
func (c *Config) Normalize() {
	if c.Host != "" && !strings.HasSuffix(c.Host, "/v1") {
		c.Host = strings.TrimSuffix(c.Host, "/") + "/v1"
	}
	if c.Concurrency == 0 {
		if c.Mode == ModeRemote {
			c.Concurrency = DefaultRemoteConcurrency
		} else {
			c.Concurrency = DefaultLocalConcurrency
		}
	}
}

// Validate checks that the configuration is valid and complete.
// It automatically normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	if c.Host == "" {
		return errors.New("ai config: Host is required")
	}
	if c.Model == "" {
		return errors.New("ai config: Model is required")
	}
	if c.Mode != ModeLocal && c.Mode != ModeRemote {
		return errors.New("ai config: Mode must be local or remote")
	}
	if c.Mode == ModeRemote && c.APIKey == "" {
		return errors.New("ai config: APIKey is required for remote mode")
	}
	if c.MaxRetries < 0 {
		return ErrInvalidMaxRetries
	}
	if c.RetryDelay <= 0 {
		return errors.New("ai config: RetryDelay must be positive")
	}
	if c.Concurrency <= 0 {
		return errors.New("ai config: Concurrency must be positive")
	}
	return nil
}
