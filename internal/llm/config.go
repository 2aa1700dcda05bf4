// Package llm provides centralized LLM configuration and client abstractions.
// This package enables easy switching between model tiers and future multi-provider support.
package llm

import "time"

// ModelTier represents the capability level of a model
type ModelTier string

const (
	// TierFast is for simple tasks: page classification, chunk ranking, field extraction
	TierFast ModelTier = "fast"
	// TierGeneral is for moderate reasoning: full job-record extraction, research summarization
	TierGeneral ModelTier = "general"
)

// Format selects the response format of a completion call
type Format string

const (
	// FormatText requests a plain-text response
	FormatText Format = "text"
	// FormatJSON requests a JSON response (markdown fences stripped on return)
	FormatJSON Format = "json"
)

// Options configures a single completion call. Zero values mean
// "use the client default" for that field.
type Options struct {
	Format      Format
	Temperature float32
	MaxTokens   int32
	Timeout     time.Duration
}

// DefaultTimeout bounds a single completion call so a stuck request
// cannot absorb the run's remaining deadline budget.
const DefaultTimeout = 60 * time.Second

// EmbedOptions configures an embedding call.
type EmbedOptions struct {
	BatchSize int
	Timeout   time.Duration
}

// DefaultEmbedBatchSize is the number of texts sent per embedding request.
const DefaultEmbedBatchSize = 32

// Provider represents an LLM provider
type Provider string

// Provider constants define supported LLM providers
const (
	// ProviderGemini is the Google Gemini provider
	ProviderGemini Provider = "gemini"
)

// Config holds the model configuration for the application
type Config struct {
	Provider       Provider
	Models         map[ModelTier]string
	EmbeddingModel string
}

// DefaultConfig returns the default configuration (currently Gemini)
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderGemini,
		Models: map[ModelTier]string{
			TierFast:    "gemini-2.5-flash-lite",
			TierGeneral: "gemini-2.5-flash",
		},
		EmbeddingModel: "text-embedding-004",
	}
}

// GetModel returns the model name for a given tier
func (c *Config) GetModel(tier ModelTier) string {
	if model, ok := c.Models[tier]; ok {
		return model
	}
	// Fall back to the fast tier if a tier is unconfigured
	if model, ok := c.Models[TierFast]; ok {
		return model
	}
	return ""
}

// WithModel returns a new Config with a specific model for a tier
func (c *Config) WithModel(tier ModelTier, model string) *Config {
	newConfig := &Config{
		Provider:       c.Provider,
		Models:         make(map[ModelTier]string),
		EmbeddingModel: c.EmbeddingModel,
	}
	for k, v := range c.Models {
		newConfig.Models[k] = v
	}
	newConfig.Models[tier] = model
	return newConfig
}
