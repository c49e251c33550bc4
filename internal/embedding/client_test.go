package embedding

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		cfg := NewConfig()
		assert.Equal(t, "text-embedding-3-small", cfg.Model)
		assert.Equal(t, 1536, cfg.Dimensions)
		assert.Equal(t, 3, cfg.MaxRetries)
	})

	t.Run("OptionsOverrideDefaults", func(t *testing.T) {
		cfg := NewConfig(
			WithAPIKey("sk-test"),
			WithModel("text-embedding-3-large"),
			WithDimensions(3072),
			WithBatchSize(32),
			WithTimeout(10*time.Second),
		)
		assert.Equal(t, "sk-test", cfg.APIKey)
		assert.Equal(t, "text-embedding-3-large", cfg.Model)
		assert.Equal(t, 3072, cfg.Dimensions)
		assert.Equal(t, 32, cfg.BatchSize)
		assert.Equal(t, 10*time.Second, cfg.Timeout)
	})
}

func TestNewClient(t *testing.T) {
	t.Run("RegisteredFactory", func(t *testing.T) {
		client, err := NewClient("openai", WithAPIKey("sk-test"))
		require.NoError(t, err)
		assert.Equal(t, "text-embedding-3-small", client.Name())
	})

	t.Run("UnregisteredFactory", func(t *testing.T) {
		_, err := NewClient("no-such-backend")
		require.Error(t, err)

		var embErr EmbeddingError
		require.ErrorAs(t, err, &embErr)
		assert.Equal(t, ErrCodeInvalidRequest, embErr.Code)
	})
}

func TestOpenAIClient(t *testing.T) {
	t.Run("RequiresAPIKey", func(t *testing.T) {
		_, err := NewOpenAIClient()
		require.Error(t, err)

		var embErr EmbeddingError
		require.ErrorAs(t, err, &embErr)
		assert.Equal(t, ErrCodeInvalidAPIKey, embErr.Code)
	})

	t.Run("RejectsEmptyInput", func(t *testing.T) {
		client, err := NewOpenAIClient(WithAPIKey("sk-test"))
		require.NoError(t, err)

		_, err = client.Embed(context.Background(), "   ")
		var embErr EmbeddingError
		require.ErrorAs(t, err, &embErr)
		assert.Equal(t, ErrCodeEmptyInput, embErr.Code)

		_, err = client.EmbedBatch(context.Background(), nil)
		require.ErrorAs(t, err, &embErr)
		assert.Equal(t, ErrCodeEmptyInput, embErr.Code)

		_, err = client.EmbedBatch(context.Background(), []string{"ok", ""})
		require.ErrorAs(t, err, &embErr)
		assert.Equal(t, ErrCodeEmptyInput, embErr.Code)
	})
}
