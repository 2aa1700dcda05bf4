package company

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/jonathan/apply-assist/internal/extract"
	"github.com/jonathan/apply-assist/internal/llm"
	"github.com/jonathan/apply-assist/internal/prompts"
)

// Resolution is the canonical identity picked for the hiring company.
type Resolution struct {
	Name       string
	Domain     string
	Confidence float64
	Method     string
}

// Resolution methods.
const (
	MethodHeuristic = "heuristic"
	MethodLLM       = "llm"
)

// ResolveInput carries the posting signals the resolver works from.
type ResolveInput struct {
	Company     string
	PageURL     string
	Title       string
	Description string
}

const descriptionExcerptChars = 1500

// Resolve determines the canonical company name and, when the posting lives
// on the company's own site, its domain. The model is consulted when a
// client is provided; a failed call falls back to the heuristic answer.
func Resolve(ctx context.Context, input ResolveInput, client llm.Client) *Resolution {
	heuristic := resolveHeuristic(input)
	if client == nil {
		return heuristic
	}

	resolved, err := resolveWithLLM(ctx, input, client)
	if err != nil || resolved.Name == "" {
		return heuristic
	}
	resolved.Domain = heuristic.Domain
	if resolved.Confidence < heuristic.Confidence {
		resolved.Confidence = heuristic.Confidence
	}
	return resolved
}

func resolveHeuristic(input ResolveInput) *Resolution {
	res := &Resolution{Method: MethodHeuristic, Domain: companyDomain(input.PageURL)}

	name := strings.TrimSpace(input.Company)
	if name != "" && name != extract.SentinelCompany {
		res.Name = name
		res.Confidence = 0.7
		if res.Domain != "" && strings.Contains(nameToken(res.Domain), nameToken(name)) {
			res.Confidence = 0.9
		}
		return res
	}

	// No extracted name. A first-party domain still identifies the company.
	if res.Domain != "" {
		res.Name = domainToName(res.Domain)
		res.Confidence = 0.5
		return res
	}

	if slug := extract.CompanyFromSlug(input.PageURL); slug != "" {
		res.Name = slug
		res.Confidence = 0.4
	}
	return res
}

func resolveWithLLM(ctx context.Context, input ResolveInput, client llm.Client) (*Resolution, error) {
	template, err := prompts.Get("research.json", "resolve-company-name")
	if err != nil {
		return nil, err
	}
	excerpt := input.Description
	if len(excerpt) > descriptionExcerptChars {
		excerpt = excerpt[:descriptionExcerptChars]
	}
	prompt := prompts.Format(template, map[string]string{
		"Company":     input.Company,
		"Domain":      companyDomain(input.PageURL),
		"Title":       input.Title,
		"Description": excerpt,
	})

	response, err := client.Generate(ctx, prompt, llm.TierFast, &llm.Options{Format: llm.FormatJSON})
	if err != nil {
		return nil, err
	}

	var parsed struct {
		CanonicalName string  `json:"canonical_name"`
		Confidence    float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(llm.CleanJSONBlock(response)), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse resolution response: %w", err)
	}
	return &Resolution{
		Name:       strings.TrimSpace(parsed.CanonicalName),
		Confidence: parsed.Confidence,
		Method:     MethodLLM,
	}, nil
}

// companyDomain returns the posting URL's registrable host unless the page
// lives on an applicant-tracking platform, whose host identifies the vendor
// rather than the employer.
func companyDomain(pageURL string) string {
	if pageURL == "" || extract.IsATSHost(pageURL) {
		return ""
	}
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	host := strings.ToLower(parsed.Hostname())
	return strings.TrimPrefix(host, "www.")
}

// domainToName derives a display name from a domain: "pied-piper.io" becomes
// "Pied Piper".
func domainToName(domain string) string {
	base := domain
	if idx := strings.Index(base, "."); idx > 0 {
		base = base[:idx]
	}
	words := strings.FieldsFunc(base, func(r rune) bool { return r == '-' || r == '_' })
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// nameToken compacts a company name for substring matching against a domain.
func nameToken(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
