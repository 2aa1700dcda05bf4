package company

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	pages   map[string]string
	fetched []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (string, string, error) {
	f.fetched = append(f.fetched, url)
	html, ok := f.pages[url]
	if !ok {
		return "", "", fmt.Errorf("no such page: %s", url)
	}
	return html, url, nil
}

type fakeSearcher struct {
	website string
	pages   []string
}

func (f *fakeSearcher) DiscoverWebsite(context.Context, string) (string, error) {
	if f.website == "" {
		return "", fmt.Errorf("no results")
	}
	return f.website, nil
}

func (f *fakeSearcher) FindProfilePages(context.Context, string, string) ([]string, error) {
	return f.pages, nil
}

func page(text string) string {
	return "<html><body><p>" + text + " " + strings.Repeat("filler ", 30) + "</p></body></html>"
}

func fixedNow() time.Time {
	return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

func TestResearch_BuildsDossierFromPages(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://acme.io/about": page("Acme builds warehouse robots in Austin."),
	}}
	client := &fakeClient{response: `{"fields": {
		"description": {"value": "Builds warehouse robots", "confidence": 0.85},
		"hq_location": {"value": "Austin, TX", "confidence": 0.8},
		"founded_year": {"value": 2015, "confidence": 0.7}
	}}`}

	dossier, err := Research(context.Background(), ResearchOptions{
		Resolution: &Resolution{Name: "Acme", Domain: "acme.io", Confidence: 0.9},
		MaxPages:   1,
		Fetcher:    fetcher,
		Client:     client,
		Now:        fixedNow,
	})

	require.NoError(t, err)
	assert.Equal(t, "Builds warehouse robots", dossier.Fields[FieldDescription].Value)
	assert.Equal(t, "Austin, TX", dossier.Fields[FieldHQLocation].Value)
	// Numeric model values are normalized to strings.
	assert.Equal(t, "2015", dossier.Fields[FieldFoundedYear].Value)
	assert.Equal(t, []string{"https://acme.io/about"}, dossier.Fields[FieldDescription].SourceURLs)
	assert.Equal(t, []string{"https://acme.io/about"}, dossier.VisitedURLs)
	assert.Equal(t, fixedNow(), dossier.UpdatedAt)
	assert.InDelta(t, 3.0/12.0, dossier.Coverage, 1e-9)
}

func TestResearch_FreshDossierSkipsCrawling(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{}}
	existing := NewDossier("Acme", "acme.io")
	existing.Touch(fixedNow().Add(-24 * time.Hour))

	dossier, err := Research(context.Background(), ResearchOptions{
		Resolution: &Resolution{Name: "Acme", Domain: "acme.io"},
		Dossier:    existing,
		Fetcher:    fetcher,
		Client:     &fakeClient{},
		Now:        fixedNow,
	})

	require.NoError(t, err)
	assert.Same(t, existing, dossier)
	assert.Empty(t, fetcher.fetched)
}

func TestResearch_StaleDossierIsExtendedNotReplaced(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://acme.io/about": page("Acme corporate overview."),
	}}
	client := &fakeClient{response: `{"fields": {
		"description": {"value": "Logistics automation", "confidence": 0.4}
	}}`}

	existing := NewDossier("Acme", "acme.io")
	existing.MergeField(FieldDescription, "Warehouse robotics", 0.9, "https://old.example.com")
	existing.Touch(fixedNow().Add(-40 * 24 * time.Hour))

	dossier, err := Research(context.Background(), ResearchOptions{
		Resolution: &Resolution{Name: "Acme", Domain: "acme.io"},
		Dossier:    existing,
		MaxPages:   1,
		Fetcher:    fetcher,
		Client:     client,
		Now:        fixedNow,
	})

	require.NoError(t, err)
	// The weaker new observation does not displace the stored one.
	assert.Equal(t, "Warehouse robotics", dossier.Fields[FieldDescription].Value)
	assert.Equal(t, fixedNow(), dossier.UpdatedAt)
}

func TestResearch_SeedsOutrankPatternURLs(t *testing.T) {
	seed := "https://news.example.com/acme-profile"
	fetcher := &fakeFetcher{pages: map[string]string{
		seed: page("In-depth profile of Acme."),
	}}
	client := &fakeClient{response: `{"fields": {}}`}

	_, err := Research(context.Background(), ResearchOptions{
		Resolution: &Resolution{Name: "Acme", Domain: "acme.io"},
		SeedURLs:   []string{seed},
		MaxPages:   1,
		Fetcher:    fetcher,
		Client:     client,
		Now:        fixedNow,
	})

	require.NoError(t, err)
	assert.Equal(t, seed, fetcher.fetched[0])
}

func TestResearch_DiscoversDomainWhenMissing(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://acme.io/about": page("Acme overview."),
	}}
	client := &fakeClient{response: `{"fields": {}}`}
	searcher := &fakeSearcher{website: "https://acme.io"}

	dossier, err := Research(context.Background(), ResearchOptions{
		Resolution: &Resolution{Name: "Acme"},
		MaxPages:   1,
		Fetcher:    fetcher,
		Client:     client,
		Searcher:   searcher,
		Now:        fixedNow,
	})

	require.NoError(t, err)
	assert.Equal(t, "acme.io", dossier.Domain)
	assert.Contains(t, fetcher.fetched, "https://acme.io/about")
}

func TestResearch_FetchFailuresAreSkipped(t *testing.T) {
	// Only the careers page exists; the higher-priority patterns 404.
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://acme.io/careers": page("Join Acme. We hire everywhere."),
	}}
	client := &fakeClient{response: `{"fields": {
		"hiring_locations": {"value": "Global", "confidence": 0.6}
	}}`}

	dossier, err := Research(context.Background(), ResearchOptions{
		Resolution: &Resolution{Name: "Acme", Domain: "acme.io"},
		MaxPages:   2,
		Fetcher:    fetcher,
		Client:     client,
		Now:        fixedNow,
	})

	require.NoError(t, err)
	assert.Equal(t, "Global", dossier.Fields[FieldHiringLocations].Value)
}

func TestResearch_RequiresResolvedCompany(t *testing.T) {
	_, err := Research(context.Background(), ResearchOptions{
		Fetcher: &fakeFetcher{},
		Client:  &fakeClient{},
	})
	assert.Error(t, err)
}
