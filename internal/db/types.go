package db

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Run represents one analysis of a job URL
type Run struct {
	ID          uuid.UUID  `json:"id"`
	JobURL      string     `json:"job_url"`
	Company     string     `json:"company,omitempty"`
	RoleTitle   string     `json:"role_title,omitempty"`
	Status      string     `json:"status"`
	StopReason  string     `json:"stop_reason,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Run status values
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusStopped   = "stopped"
	RunStatusFailed    = "failed"
)

// ArtifactStep constants for known artifact types
const (
	StepRawPage        = "raw_page"
	StepClassification = "classification"
	StepCleanedPage    = "cleaned_page"
	StepFocusedContent = "focused_content"
	StepChunkScores    = "chunk_scores"
	StepJobRecord      = "job_record"
	StepResolution     = "company_resolution"
	StepDossier        = "company_dossier"
)

// DossierRecord is a stored company dossier row
type DossierRecord struct {
	ID             uuid.UUID `json:"id"`
	Company        string    `json:"company"`
	NameNormalized string    `json:"name_normalized"`
	Domain         string    `json:"domain,omitempty"`
	Dossier        []byte    `json:"dossier"`
	UpdatedAt      time.Time `json:"updated_at"`
	CreatedAt      time.Time `json:"created_at"`
}

var nonAlnumRe = regexp.MustCompile(`[^a-z0-9]`)

// NormalizeName canonicalizes a company name for lookup: lowercase with
// every non-alphanumeric character removed.
func NormalizeName(name string) string {
	return nonAlnumRe.ReplaceAllString(strings.ToLower(name), "")
}

// NormalizeDomain canonicalizes a domain for lookup.
func NormalizeDomain(domain string) string {
	domain = strings.ToLower(strings.TrimSpace(domain))
	domain = strings.TrimPrefix(domain, "https://")
	domain = strings.TrimPrefix(domain, "http://")
	domain = strings.TrimPrefix(domain, "www.")
	return strings.TrimSuffix(domain, "/")
}
