package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const minimalConfig = `
providers:
  - id: chatgpt
    type: chatgpt
    display_name: ChatGPT
    model: gpt-4
    api_key: sk-test
`

func TestLoad(t *testing.T) {
	t.Run("DefaultsApply", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, minimalConfig))
		require.NoError(t, err)

		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, "flat", cfg.VectorDB.Type)
		assert.Equal(t, 900, cfg.Document.ChunkSize)
		assert.Equal(t, 120, cfg.Document.ChunkOverlap)
		assert.Equal(t, 8, cfg.Search.Limit)
		assert.Equal(t, 5, cfg.Eval.PrecisionK)
		assert.Equal(t, "text-embedding-3-small", cfg.Embedding.Model)
	})

	t.Run("ProviderSettings", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, `
providers:
  - id: chatgpt
    type: chatgpt
    display_name: ChatGPT
    model: gpt-4
    api_key: sk-a
  - id: deepseek
    type: deepseek
    display_name: DeepSeek
    model: deepseek-chat
    api_key: sk-b
`))
		require.NoError(t, err)
		require.Len(t, cfg.Providers, 2)
		assert.Equal(t, "DeepSeek", cfg.Providers[1].DisplayName)
		assert.Equal(t, "deepseek-chat", cfg.Providers[1].Model)
	})

	t.Run("NoProvidersFails", func(t *testing.T) {
		_, err := Load(writeConfig(t, "server:\n  port: 9000\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no answer providers")
	})

	t.Run("DuplicateProviderIDFails", func(t *testing.T) {
		_, err := Load(writeConfig(t, `
providers:
  - id: chatgpt
    api_key: a
  - id: ChatGPT
    api_key: b
`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate provider id")
	})

	t.Run("ExpandsEnvReferences", func(t *testing.T) {
		t.Setenv("TEST_OPENAI_KEY", "sk-from-env")
		cfg, err := Load(writeConfig(t, `
providers:
  - id: chatgpt
    api_key: ${TEST_OPENAI_KEY}
embedding:
  api_key: ${TEST_OPENAI_KEY}
`))
		require.NoError(t, err)
		assert.Equal(t, "sk-from-env", cfg.Providers[0].APIKey)
		assert.Equal(t, "sk-from-env", cfg.Embedding.APIKey)
	})

	t.Run("MissingFileUsesDefaults", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		// Defaults carry no providers, so validation still rejects it.
		assert.Error(t, err)
	})
}

func TestCacheTTL(t *testing.T) {
	cfg := CacheConfig{TTL: 120}
	assert.Equal(t, "2m0s", cfg.CacheTTL().String())
}
