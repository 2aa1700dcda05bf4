package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Client is an abstraction over LLM completion providers
type Client interface {
	// Generate produces a completion for prompt using the specified model tier.
	// opts may be nil, in which case client defaults apply.
	Generate(ctx context.Context, prompt string, tier ModelTier, opts *Options) (string, error)
	// GetModel returns the underlying provider model for a tier (for direct access if needed)
	GetModel(tier ModelTier) string
	// Close releases any resources held by the client
	Close() error
}

// Embedder is an abstraction over embedding providers
type Embedder interface {
	// Embed returns one vector per input text, in input order.
	Embed(ctx context.Context, texts []string, opts *EmbedOptions) ([][]float32, error)
}

// NewClient creates a new LLM client based on configuration
func NewClient(ctx context.Context, config *Config, apiKey string) (*GeminiClient, error) {
	if config == nil {
		config = DefaultConfig()
	}
	return NewGeminiClient(ctx, config, apiKey)
}

// GeminiClient implements Client and Embedder for Google Gemini
type GeminiClient struct {
	client *genai.Client
	config *Config
}

// NewGeminiClient creates a new Gemini client
func NewGeminiClient(ctx context.Context, config *Config, apiKey string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{
		client: client,
		config: config,
	}, nil
}

// Generate produces a completion using the specified model tier
func (c *GeminiClient) Generate(ctx context.Context, prompt string, tier ModelTier, opts *Options) (string, error) {
	modelName := c.config.GetModel(tier)
	if modelName == "" {
		return "", fmt.Errorf("no model configured for tier %s", tier)
	}
	if opts == nil {
		opts = &Options{}
	}

	model := c.client.GenerativeModel(modelName)
	temperature := opts.Temperature
	if temperature == 0 {
		temperature = 0.1 // low temperature for consistent output
	}
	model.SetTemperature(temperature)
	if opts.MaxTokens > 0 {
		model.SetMaxOutputTokens(opts.MaxTokens)
	}
	if opts.Format == FormatJSON {
		model.ResponseMIMEType = "application/json"
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := model.GenerateContent(callCtx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	text, err := extractTextFromResponse(resp)
	if err != nil {
		return "", err
	}

	if opts.Format == FormatJSON {
		return CleanJSONBlock(text), nil
	}
	return text, nil
}

// Embed returns one embedding vector per input text, batched per EmbedOptions.
func (c *GeminiClient) Embed(ctx context.Context, texts []string, opts *EmbedOptions) ([][]float32, error) {
	if c.config.EmbeddingModel == "" {
		return nil, fmt.Errorf("no embedding model configured")
	}
	if opts == nil {
		opts = &EmbedOptions{}
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultEmbedBatchSize
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	em := c.client.EmbeddingModel(c.config.EmbeddingModel)

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}

		batch := em.NewBatch()
		for _, text := range texts[start:end] {
			batch.AddContent(genai.Text(text))
		}

		callCtx, cancel := context.WithTimeout(ctx, timeout)
		resp, err := em.BatchEmbedContents(callCtx, batch)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("failed to embed batch at offset %d: %w", start, err)
		}
		if len(resp.Embeddings) != end-start {
			return nil, fmt.Errorf("embedding count mismatch: sent %d, got %d", end-start, len(resp.Embeddings))
		}
		for _, e := range resp.Embeddings {
			vectors = append(vectors, e.Values)
		}
	}

	return vectors, nil
}

// GetModel returns the model name for a tier
func (c *GeminiClient) GetModel(tier ModelTier) string {
	return c.config.GetModel(tier)
}

// Close releases resources held by the client
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// extractTextFromResponse extracts text from Gemini API response
func extractTextFromResponse(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in response")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("no content in response")
	}

	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}

	if len(parts) == 0 {
		return "", fmt.Errorf("no text parts in response")
	}

	return strings.Join(parts, ""), nil
}
