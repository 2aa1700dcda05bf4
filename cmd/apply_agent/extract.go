package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/spf13/cobra"

	"github.com/jonathan/apply-assist/internal/clean"
	"github.com/jonathan/apply-assist/internal/extract"
	"github.com/jonathan/apply-assist/internal/fetch"
	"github.com/jonathan/apply-assist/internal/llm"
	"github.com/jonathan/apply-assist/internal/observability"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract a job record from a single page",
	Long:  "Fetch one URL and run the extraction fallback chain (structured data -> microdata -> site heuristics -> LLM), printing the resulting job record.",
	RunE:  runExtract,
}

var (
	extractURL     string
	extractAPIKey  string
	extractJSON    bool
	extractVerbose bool
)

func init() {
	extractCmd.Flags().StringVarP(&extractURL, "url", "u", "", "URL to extract from (required)")
	extractCmd.Flags().StringVar(&extractAPIKey, "api-key", "", "Gemini API key for the LLM fallback (overrides GEMINI_API_KEY env var)")
	extractCmd.Flags().BoolVar(&extractJSON, "json", false, "Print the raw job record JSON")
	extractCmd.Flags().BoolVarP(&extractVerbose, "verbose", "v", false, "Log each strategy attempt")
	_ = extractCmd.MarkFlagRequired("url")

	rootCmd.AddCommand(extractCmd)
}

func runExtract(_ *cobra.Command, _ []string) error {
	ctx := context.Background()

	fetched, err := fetch.URL(ctx, extractURL, nil)
	if fetched == nil {
		return fmt.Errorf("failed to fetch %s: %w", extractURL, err)
	}

	cleaned, err := clean.HTML(fetched.HTML)
	if err != nil {
		return fmt.Errorf("failed to clean page: %w", err)
	}

	apiKey := extractAPIKey
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

	result := extract.Run(ctx, extract.Input{
		URL:         fetched.FinalURL,
		RawHTML:     fetched.HTML,
		CleanedText: flattenText(cleaned.HTML),
	}, &extract.Options{Client: client, Verbose: extractVerbose})

	if extractJSON {
		data, err := json.MarshalIndent(result.Detail, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}
	observability.NewPrinter(os.Stdout).PrintJobDetail(result.Detail, result.Strategy)
	return nil
}

func flattenText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
