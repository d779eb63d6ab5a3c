package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/naka-gawa/github-contributions/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "env-token")
	path := writeConfig(t, "{}\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env-token", cfg.GitHub.Token)
	assert.Equal(t, domain.DefaultCaps, cfg.Caps)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 7, cfg.RateLimit.WindowDays)
	assert.Equal(t, 2*time.Second, cfg.RateLimit.WindowDelay)
	assert.Equal(t, "bedrock", cfg.Summary.Provider)
	assert.Equal(t, "us-east-1", cfg.Summary.Region)
}

func TestLoad_FileOverrides(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "")
	path := writeConfig(t, `
github:
  token: file-token
caps:
  commits: 5
  pull_requests: 4
  issues: 3
  reviews: 0
retry:
  max_attempts: 5
  initial_backoff: 250ms
rate_limit:
  window_days: 14
summary:
  provider: openai
  model: gpt-4o-mini
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "file-token", cfg.GitHub.Token)
	assert.Equal(t, domain.Caps{Commits: 5, PullRequests: 4, Issues: 3, Reviews: 0}, cfg.Caps)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.Retry.InitialBackoff)
	assert.Equal(t, 8*time.Second, cfg.Retry.MaxBackoff)
	assert.Equal(t, 14, cfg.RateLimit.WindowDays)
	assert.Equal(t, "openai", cfg.Summary.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.Summary.Model)
}

func TestLoad_InvalidValues(t *testing.T) {
	path := writeConfig(t, `
retry:
  max_attempts: 0
summary:
  provider: clippy
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
	assert.Contains(t, err.Error(), "retry.max_attempts")
	assert.Contains(t, err.Error(), "summary.provider")
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
