package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "http://127.0.0.1:8080/v1", cfg.APIBase)
	assert.Equal(t, 8, cfg.MaxInflight)
	assert.Equal(t, 300*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.True(t, cfg.HonorRetryAfter)
	assert.Equal(t, 6, cfg.Threshold)
}

func TestLoadFromCLIArgs(t *testing.T) {
	args := []string{"--model", "llama-3.1-8b", "--api-key", "sk-test", "--max-inflight", "16", "--backoff-base", "250ms"}
	cfg, err := Load(args)
	require.NoError(t, err)
	assert.Equal(t, "llama-3.1-8b", cfg.Model)
	assert.Equal(t, "sk-test", cfg.APIKey)
	assert.Equal(t, 16, cfg.MaxInflight)
	assert.Equal(t, 250*time.Millisecond, cfg.BackoffBase)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("MATHPIPE_MODEL", "env-model")
	t.Setenv("OPENAI_API_KEY", "env-key")
	t.Setenv("OPENAI_API_BASE", "http://env:9999/v1")
	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, "env-model", cfg.Model)
	assert.Equal(t, "env-key", cfg.APIKey)
	assert.Equal(t, "http://env:9999/v1", cfg.APIBase)
}

func TestCLIOverridesEnv(t *testing.T) {
	t.Setenv("MATHPIPE_MODEL", "env-model")
	cfg, err := Load([]string{"--model", "cli-model"})
	require.NoError(t, err)
	assert.Equal(t, "cli-model", cfg.Model)
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	yamlContent := []byte("model: yaml-model\nmax-inflight: 12\nrequest-timeout: 90s\n")
	path := filepath.Join(dir, "config.yml")
	require.NoError(t, os.WriteFile(path, yamlContent, 0644))

	cfg := DefaultConfig()
	require.NoError(t, cfg.loadYAML(path))
	assert.Equal(t, "yaml-model", cfg.Model)
	assert.Equal(t, 12, cfg.MaxInflight)
	assert.Equal(t, 90*time.Second, cfg.RequestTimeout)
}

func TestLoadYAMLMissing(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.loadYAML("/nonexistent/path.yml")
	assert.Error(t, err)
}
