// Package company resolves the hiring company behind a job posting and
// builds a confidence-scored research dossier about it.
package company

import (
	"strings"
	"time"
)

// FreshnessWindow is how long a dossier stays usable before a re-research.
const FreshnessWindow = 30 * 24 * time.Hour

// Core dossier field keys. Coverage is computed against this set.
const (
	FieldDescription     = "description"
	FieldIndustries      = "industries"
	FieldHQLocation      = "hq_location"
	FieldSizeRange       = "size_range"
	FieldFoundedYear     = "founded_year"
	FieldFundingStage    = "funding_stage"
	FieldPublicTicker    = "public_ticker"
	FieldRemotePolicy    = "remote_policy"
	FieldSponsorship     = "sponsorship"
	FieldHiringLocations = "hiring_locations"
	FieldTechStack       = "tech_stack"
	FieldOpenJobsCount   = "open_jobs_count"
)

// CoreFields lists every dossier field key in canonical order.
func CoreFields() []string {
	return []string{
		FieldDescription, FieldIndustries, FieldHQLocation, FieldSizeRange,
		FieldFoundedYear, FieldFundingStage, FieldPublicTicker, FieldRemotePolicy,
		FieldSponsorship, FieldHiringLocations, FieldTechStack, FieldOpenJobsCount,
	}
}

// Field is one researched fact with its confidence and provenance.
type Field struct {
	Value      string   `json:"value"`
	Confidence float64  `json:"confidence"`
	SourceURLs []string `json:"source_urls,omitempty"`
}

// Dossier is the accumulated research memory for one company.
type Dossier struct {
	Company     string            `json:"company"`
	Domain      string            `json:"domain,omitempty"`
	UpdatedAt   time.Time         `json:"updated_at"`
	Coverage    float64           `json:"coverage"`
	VisitedURLs []string          `json:"visited_urls,omitempty"`
	Fields      map[string]*Field `json:"fields"`
}

// NewDossier returns an empty dossier for a company.
func NewDossier(name, domain string) *Dossier {
	return &Dossier{
		Company: name,
		Domain:  domain,
		Fields:  map[string]*Field{},
	}
}

// MergeField folds one observation into the dossier. An existing value is
// replaced only by a strictly higher confidence; ties and losses keep what
// is there. Matching values accumulate provenance regardless of confidence.
func (d *Dossier) MergeField(key, value string, confidence float64, sourceURL string) {
	value = strings.TrimSpace(value)
	if value == "" || !validFieldKey(key) {
		return
	}
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	existing, ok := d.Fields[key]
	switch {
	case !ok:
		d.Fields[key] = &Field{Value: value, Confidence: confidence, SourceURLs: appendSource(nil, sourceURL)}
	case confidence > existing.Confidence:
		existing.Value = value
		existing.Confidence = confidence
		existing.SourceURLs = appendSource(existing.SourceURLs, sourceURL)
	case strings.EqualFold(existing.Value, value):
		existing.SourceURLs = appendSource(existing.SourceURLs, sourceURL)
	}
	d.recompute()
}

// MarkVisited records a researched URL exactly once.
func (d *Dossier) MarkVisited(url string) {
	d.VisitedURLs = appendSource(d.VisitedURLs, url)
}

// Visited reports whether a URL was already researched.
func (d *Dossier) Visited(url string) bool {
	for _, v := range d.VisitedURLs {
		if v == url {
			return true
		}
	}
	return false
}

// Fresh reports whether the dossier is recent enough to reuse as-is.
func (d *Dossier) Fresh(now time.Time) bool {
	return !d.UpdatedAt.IsZero() && now.Sub(d.UpdatedAt) < FreshnessWindow
}

// Touch stamps the dossier as updated now and recomputes coverage.
func (d *Dossier) Touch(now time.Time) {
	d.UpdatedAt = now.UTC()
	d.recompute()
}

// MissingFields returns core fields not yet filled, in canonical order.
func (d *Dossier) MissingFields() []string {
	var missing []string
	for _, key := range CoreFields() {
		if f, ok := d.Fields[key]; !ok || strings.TrimSpace(f.Value) == "" {
			missing = append(missing, key)
		}
	}
	return missing
}

// recompute refreshes Coverage as the filled fraction of core fields.
func (d *Dossier) recompute() {
	core := CoreFields()
	filled := len(core) - len(d.MissingFields())
	d.Coverage = float64(filled) / float64(len(core))
}

func validFieldKey(key string) bool {
	for _, k := range CoreFields() {
		if k == key {
			return true
		}
	}
	return false
}

func appendSource(urls []string, url string) []string {
	url = strings.TrimSpace(url)
	if url == "" {
		return urls
	}
	for _, u := range urls {
		if u == url {
			return urls
		}
	}
	return append(urls, url)
}

// FilledKeys returns the filled field keys in canonical order, for stable
// rendering.
func (d *Dossier) FilledKeys() []string {
	var keys []string
	for _, key := range CoreFields() {
		if _, ok := d.Fields[key]; ok {
			keys = append(keys, key)
		}
	}
	return keys
}
