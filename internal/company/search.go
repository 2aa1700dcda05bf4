package company

import (
	"context"
	"fmt"

	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/option"
)

// Searcher discovers company pages through programmable web search.
type Searcher struct {
	svc *customsearch.Service
	cx  string
}

// NewSearcher creates a Searcher backed by the Custom Search API.
func NewSearcher(ctx context.Context, apiKey string, cx string) (*Searcher, error) {
	svc, err := customsearch.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create customsearch service: %w", err)
	}
	return &Searcher{svc: svc, cx: cx}, nil
}

// DiscoverWebsite attempts to find the company's main website URL.
func (s *Searcher) DiscoverWebsite(ctx context.Context, companyName string) (string, error) {
	query := fmt.Sprintf("%s official website", companyName)
	resp, err := s.svc.Cse.List().Context(ctx).Cx(s.cx).Q(query).Num(3).Do()
	if err != nil {
		return "", fmt.Errorf("search failed: %w", err)
	}
	if len(resp.Items) == 0 {
		return "", fmt.Errorf("no search results found for %s", companyName)
	}
	return resp.Items[0].Link, nil
}

// FindProfilePages discovers pages likely to carry company profile facts.
func (s *Searcher) FindProfilePages(ctx context.Context, companyName, domain string) ([]string, error) {
	queries := []string{
		fmt.Sprintf("%s company about", companyName),
		fmt.Sprintf("%s headquarters employees funding", companyName),
		fmt.Sprintf("%s remote work policy", companyName),
	}
	if domain != "" {
		queries = append(queries,
			fmt.Sprintf("site:%s about", domain),
			fmt.Sprintf("site:%s careers", domain),
		)
	}

	var pages []string
	seen := map[string]bool{}
	for _, q := range queries {
		resp, err := s.svc.Cse.List().Context(ctx).Cx(s.cx).Q(q).Num(3).Do()
		if err != nil {
			continue // skip failed queries gracefully
		}
		for _, item := range resp.Items {
			if !seen[item.Link] {
				seen[item.Link] = true
				pages = append(pages, item.Link)
			}
		}
	}
	return pages, nil
}
