package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	t.Setenv("MISTRAL_API_KEY", "")
	t.Setenv("PORT", "")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "https://api.mistral.ai/v1", cfg.Mistral.BaseURL)
	assert.Equal(t, cfg.Mistral.BaseURL, cfg.Mistral.ChatBaseURL)
	assert.Equal(t, "mistral-large-latest", cfg.Mistral.ChatModel)
	require.NotNil(t, cfg.Mistral.Temperature)
	assert.InDelta(t, 0.3, *cfg.Mistral.Temperature, 1e-6)
	assert.Equal(t, 4000, cfg.Mistral.MaxTokens)
	assert.Equal(t, StrategyHosted, cfg.Extraction.Strategy)
	assert.False(t, cfg.Minio.Enabled)
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
mistral:
  apiKey: from-file
  timeout: 30s
extraction:
  strategy: local
  rasterize: true
auth:
  apiKeys:
    frontend: abc
`)
	t.Setenv("MISTRAL_API_KEY", "from-env")
	t.Setenv("PORT", ":7000")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "from-env", cfg.Mistral.APIKey)
	assert.Equal(t, 30*time.Second, cfg.Mistral.Timeout)
	assert.Equal(t, StrategyLocal, cfg.Extraction.Strategy)
	assert.True(t, cfg.Extraction.Rasterize)
	assert.Equal(t, "abc", cfg.Auth.APIKeys["frontend"])
	assert.Equal(t, ":7000", cfg.Addr())
}

func TestLoad_ZeroTemperatureKept(t *testing.T) {
	t.Setenv("PORT", "")
	cfg, err := Load(writeConfig(t, "mistral:\n  temperature: 0\n"))
	require.NoError(t, err)
	require.NotNil(t, cfg.Mistral.Temperature)
	assert.Zero(t, *cfg.Mistral.Temperature)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("PORT", "")
	_, err := Load(writeConfig(t, "extraction:\n  strategy: cloud\n"))
	assert.ErrorContains(t, err, "extraction.strategy")

	_, err = Load(writeConfig(t, "server: [unclosed"))
	assert.ErrorContains(t, err, "parse config")
}

func TestPath(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	assert.Equal(t, "config.yaml", Path())
	t.Setenv("CONFIG_PATH", "/etc/apr/config.yaml")
	assert.Equal(t, "/etc/apr/config.yaml", Path())
}
