package llm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, ProviderGemini, config.Provider)
	assert.Equal(t, "gemini-2.5-flash-lite", config.GetModel(TierFast))
	assert.Equal(t, "gemini-2.5-flash", config.GetModel(TierGeneral))
	assert.Equal(t, "text-embedding-004", config.EmbeddingModel)
}

func TestGetModel_Fallback(t *testing.T) {
	config := &Config{
		Provider: ProviderGemini,
		Models: map[ModelTier]string{
			TierFast: "fallback-model",
		},
	}

	// Unknown tier should fall back to TierFast
	assert.Equal(t, "fallback-model", config.GetModel("unknown"))
}

func TestGetModel_EmptyConfig(t *testing.T) {
	config := &Config{
		Provider: ProviderGemini,
		Models:   map[ModelTier]string{},
	}

	// Empty config should return empty string
	assert.Equal(t, "", config.GetModel(TierGeneral))
}

func TestWithModel(t *testing.T) {
	config := DefaultConfig()
	newConfig := config.WithModel(TierGeneral, "custom-model")

	// Original should be unchanged
	assert.Equal(t, "gemini-2.5-flash", config.GetModel(TierGeneral))

	// New config should have custom model
	assert.Equal(t, "custom-model", newConfig.GetModel(TierGeneral))

	// Other tiers and the embedding model should be copied
	assert.Equal(t, "gemini-2.5-flash-lite", newConfig.GetModel(TierFast))
	assert.Equal(t, "text-embedding-004", newConfig.EmbeddingModel)
}

func TestModelTierConstants(t *testing.T) {
	assert.Equal(t, ModelTier("fast"), TierFast)
	assert.Equal(t, ModelTier("general"), TierGeneral)
}

func TestOptions_ZeroValueMeansDefaults(t *testing.T) {
	var opts Options
	assert.Equal(t, Format(""), opts.Format)
	assert.Equal(t, float32(0), opts.Temperature)
	assert.Equal(t, int32(0), opts.MaxTokens)
	assert.Equal(t, time.Duration(0), opts.Timeout)
}
