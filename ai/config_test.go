package ai

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigDefaults(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ModeLocal, cfg.Mode)
	assert.Equal(t, DefaultLocalConcurrency, cfg.Concurrency)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, time.Second, cfg.RetryDelay)
}

func TestConfigNormalize(t *testing.T) {
	t.Run("adds v1 suffix", func(t *testing.T) {
		cfg := NewConfig(WithHost("http://localhost:11434"))
		cfg.Normalize()
		assert.Equal(t, "http://localhost:11434/v1", cfg.Host)
	})

	t.Run("strips trailing slash before suffixing", func(t *testing.T) {
		cfg := NewConfig(WithHost("http://localhost:11434/"))
		cfg.Normalize()
		assert.Equal(t, "http://localhost:11434/v1", cfg.Host)
	})

	t.Run("leaves suffixed hosts alone", func(t *testing.T) {
		cfg := NewConfig(WithHost("http://localhost:11434/v1"))
		cfg.Normalize()
		assert.Equal(t, "http://localhost:11434/v1", cfg.Host)
	})

	t.Run("remote mode raises the concurrency default", func(t *testing.T) {
		cfg := NewConfig(WithMode(ModeRemote), WithAPIKey("sk-test"))
		cfg.Normalize()
		assert.Equal(t, DefaultRemoteConcurrency, cfg.Concurrency)
	})

	t.Run("explicit concurrency wins", func(t *testing.T) {
		cfg := NewConfig(WithMode(ModeRemote), WithAPIKey("sk-test"), WithConcurrency(4))
		cfg.Normalize()
		assert.Equal(t, 4, cfg.Concurrency)
	})
}

func TestConfigValidate(t *testing.T) {
	t.Run("remote mode requires an api key", func(t *testing.T) {
		cfg := NewConfig(WithMode(ModeRemote))
		assert.Error(t, cfg.Validate())

		cfg = NewConfig(WithMode(ModeRemote), WithAPIKey("sk-test"))
		assert.NoError(t, cfg.Validate())
	})

	t.Run("rejects blank model", func(t *testing.T) {
		cfg := NewConfig(WithModel(""))
		assert.Error(t, cfg.Validate())
	})

	t.Run("rejects unknown mode", func(t *testing.T) {
		cfg := NewConfig(WithMode("hybrid"))
		assert.Error(t, cfg.Validate())
	})

	t.Run("rejects negative retries", func(t *testing.T) {
		cfg := NewConfig(WithMaxRetries(-1))
		assert.ErrorIs(t, cfg.Validate(), ErrInvalidMaxRetries)
	})
}
