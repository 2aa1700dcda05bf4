package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/apply-assist/internal/company"
	"github.com/jonathan/apply-assist/internal/fetch"
	"github.com/jonathan/apply-assist/internal/llm"
	"github.com/jonathan/apply-assist/internal/observability"
)

var researchCmd = &cobra.Command{
	Use:   "research",
	Short: "Research a company into a dossier",
	Long:  "Run a bounded research pass over a company's web presence and print the resulting confidence-scored dossier, without the rest of the pipeline.",
	RunE:  runResearch,
}

var (
	researchCompany      string
	researchDomain       string
	researchSeeds        []string
	researchPages        int
	researchAPIKey       string
	researchSearchAPIKey string
	researchSearchCX     string
	researchJSON         bool
	researchVerbose      bool
)

func init() {
	researchCmd.Flags().StringVarP(&researchCompany, "company", "c", "", "Canonical company name (required)")
	researchCmd.Flags().StringVarP(&researchDomain, "domain", "d", "", "Company website domain (discovered via search when omitted)")
	researchCmd.Flags().StringSliceVar(&researchSeeds, "seed", nil, "Seed URL to research first (repeatable)")
	researchCmd.Flags().IntVar(&researchPages, "max-pages", company.DefaultMaxPages, "Maximum pages to visit")
	researchCmd.Flags().StringVar(&researchAPIKey, "api-key", "", "Gemini API key (overrides GEMINI_API_KEY env var)")
	researchCmd.Flags().StringVar(&researchSearchAPIKey, "search-api-key", "", "Custom Search API key (overrides SEARCH_API_KEY env var)")
	researchCmd.Flags().StringVar(&researchSearchCX, "search-cx", "", "Custom Search engine ID (overrides SEARCH_CX env var)")
	researchCmd.Flags().BoolVar(&researchJSON, "json", false, "Print the raw dossier JSON")
	researchCmd.Flags().BoolVarP(&researchVerbose, "verbose", "v", false, "Log each page visited")
	_ = researchCmd.MarkFlagRequired("company")

	rootCmd.AddCommand(researchCmd)
}

func runResearch(_ *cobra.Command, _ []string) error {
	ctx := context.Background()

	apiKey := researchAPIKey
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return fmt.Errorf("GEMINI_API_KEY environment variable or --api-key flag is required")
	}
	gemini, err := llm.NewGeminiClient(ctx, nil, apiKey)
	if err != nil {
		return fmt.Errorf("failed to create LLM client: %w", err)
	}
	defer func() { _ = gemini.Close() }()

	searchKey := researchSearchAPIKey
	if searchKey == "" {
		searchKey = os.Getenv("SEARCH_API_KEY")
	}
	searchCX := researchSearchCX
	if searchCX == "" {
		searchCX = os.Getenv("SEARCH_CX")
	}
	var searcher company.Discoverer
	if searchKey != "" {
		s, err := company.NewSearcher(ctx, searchKey, searchCX)
		if err != nil {
			return fmt.Errorf("failed to create search client: %w", err)
		}
		searcher = s
	}

	dossier, err := company.Research(ctx, company.ResearchOptions{
		Resolution: &company.Resolution{
			Name:       researchCompany,
			Domain:     researchDomain,
			Confidence: 1.0,
			Method:     company.MethodHeuristic,
		},
		SeedURLs: researchSeeds,
		MaxPages: researchPages,
		Fetcher:  httpFetcher{},
		Client:   gemini,
		Searcher: searcher,
		Verbose:  researchVerbose,
	})
	if err != nil {
		return fmt.Errorf("research failed: %w", err)
	}

	if researchJSON {
		data, err := json.MarshalIndent(dossier, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}
	observability.NewPrinter(os.Stdout).PrintDossier(dossier)
	return nil
}

// httpFetcher adapts the fetch package to the research Fetcher.
type httpFetcher struct{}

func (httpFetcher) Fetch(ctx context.Context, url string) (string, string, error) {
	result, err := fetch.URL(ctx, url, nil)
	if err != nil {
		return "", "", err
	}
	return result.HTML, result.FinalURL, nil
}
