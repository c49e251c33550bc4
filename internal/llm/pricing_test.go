package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimateCost(t *testing.T) {
	t.Run("KnownModels", func(t *testing.T) {
		// 1000 input and 500 output tokens on gpt-4: 0.03 + 0.5*0.06.
		assert.InDelta(t, 0.06, EstimateCost(ModelGPT4, 1000, 500), 1e-9)
		assert.InDelta(t, 0.002, EstimateCost(ModelGPT35Turbo, 1000, 500), 1e-9)
		assert.InDelta(t, 0.00028, EstimateCost(ModelDeepSeekChat, 1000, 500), 1e-9)
		assert.InDelta(t, 0.00165, EstimateCost(ModelDeepSeekReasoner, 1000, 500), 1e-9)
	})

	t.Run("UnknownModelCostsZero", func(t *testing.T) {
		assert.Equal(t, 0.0, EstimateCost("claude-sonnet", 5000, 5000))
		assert.Equal(t, 0.0, EstimateCost("", 1000, 1000))
	})

	t.Run("ZeroTokens", func(t *testing.T) {
		assert.Equal(t, 0.0, EstimateCost(ModelGPT4, 0, 0))
	})

	t.Run("FractionalThousands", func(t *testing.T) {
		// 150 input and 80 output tokens on gpt-4-turbo.
		want := 150.0/1000.0*0.01 + 80.0/1000.0*0.03
		assert.InDelta(t, want, EstimateCost(ModelGPT4Turbo, 150, 80), 1e-9)
	})
}

func TestNewClient(t *testing.T) {
	t.Run("ChatGPTFactory", func(t *testing.T) {
		client, err := NewClient("chatgpt",
			WithID("gpt"), WithAPIKey("sk-test"))
		assert.NoError(t, err)
		assert.Equal(t, "gpt", client.ID())
		assert.Equal(t, "gpt", client.Name())
		assert.Equal(t, ModelGPT35Turbo, client.Model())
	})

	t.Run("DeepSeekFactory", func(t *testing.T) {
		client, err := NewClient("deepseek",
			WithID("ds"), WithDisplayName("DeepSeek V3"), WithAPIKey("sk-test"))
		assert.NoError(t, err)
		assert.Equal(t, "ds", client.ID())
		assert.Equal(t, "DeepSeek V3", client.Name())
		assert.Equal(t, ModelDeepSeekChat, client.Model())
	})

	t.Run("UnregisteredType", func(t *testing.T) {
		_, err := NewClient("gemini")
		assert.Error(t, err)
	})

	t.Run("MissingAPIKey", func(t *testing.T) {
		_, err := NewClient("chatgpt", WithID("gpt"))
		assert.Error(t, err)
	})

	t.Run("MissingID", func(t *testing.T) {
		_, err := NewClient("chatgpt", WithAPIKey("sk-test"))
		assert.Error(t, err)
	})
}
