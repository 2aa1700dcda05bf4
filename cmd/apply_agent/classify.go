package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/apply-assist/internal/classify"
	"github.com/jonathan/apply-assist/internal/fetch"
	"github.com/jonathan/apply-assist/internal/llm"
	"github.com/jonathan/apply-assist/internal/observability"
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Classify a single page by type",
	Long:  "Fetch one URL and print its page classification (detail, listing, login_wall, ...) without running the rest of the pipeline.",
	RunE:  runClassify,
}

var (
	classifyURL    string
	classifyAPIKey string
	classifyJSON   bool
)

func init() {
	classifyCmd.Flags().StringVarP(&classifyURL, "url", "u", "", "URL to classify (required)")
	classifyCmd.Flags().StringVar(&classifyAPIKey, "api-key", "", "Gemini API key for the LLM fallback (overrides GEMINI_API_KEY env var)")
	classifyCmd.Flags().BoolVar(&classifyJSON, "json", false, "Print the raw classification JSON")
	_ = classifyCmd.MarkFlagRequired("url")

	rootCmd.AddCommand(classifyCmd)
}

func runClassify(_ *cobra.Command, _ []string) error {
	ctx := context.Background()

	result, err := fetch.URL(ctx, classifyURL, nil)
	if result == nil {
		return fmt.Errorf("failed to fetch %s: %w", classifyURL, err)
	}

	apiKey := classifyAPIKey
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	var client llm.Client
	if apiKey != "" {
		gemini, err := llm.NewGeminiClient(ctx, nil, apiKey)
		if err != nil {
			return fmt.Errorf("failed to create LLM client: %w", err)
		}
		defer func() { _ = gemini.Close() }()
		client = gemini
	}

	classification, err := classify.Page(ctx, classify.Input{
		HTML:       result.HTML,
		URL:        result.FinalURL,
		StatusCode: result.StatusCode,
	}, classify.Options{UseLLM: client != nil, Client: client})
	if err != nil {
		return fmt.Errorf("classification failed: %w", err)
	}

	if classifyJSON {
		data, err := json.MarshalIndent(classification, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}
	observability.NewPrinter(os.Stdout).PrintClassification(classification)
	return nil
}
