// Package extract produces one canonical job record from a page through an
// ordered fallback of strategies: structured data, microdata, site-specific
// DOM heuristics, then LLM extraction.
package extract

import "strings"

// Sentinel values signal extraction failure and are never treated as real
// data downstream.
const (
	SentinelTitle   = "Untitled"
	SentinelCompany = "Unknown"
)

// JobDetail is the canonical job record for one posting.
type JobDetail struct {
	Title           string   `json:"title"`
	Company         string   `json:"company"`
	CompanyOneLiner string   `json:"company_one_liner,omitempty"`
	Location        string   `json:"location,omitempty"`
	Salary          string   `json:"salary,omitempty"`
	Description     string   `json:"description"`
	Requirements    []string `json:"requirements,omitempty"`
	PostedDate      string   `json:"posted_date,omitempty"`
	Deadline        string   `json:"deadline,omitempty"`
	EmploymentType  string   `json:"employment_type,omitempty"`
	RemoteType      string   `json:"remote_type,omitempty"`
	Seniority       string   `json:"seniority,omitempty"`
	ApplyURL        string   `json:"apply_url,omitempty"`
	Department      string   `json:"department,omitempty"`
}

// NewSentinelDetail returns an all-sentinel record.
func NewSentinelDetail() *JobDetail {
	return &JobDetail{Title: SentinelTitle, Company: SentinelCompany}
}

// HasTitle reports whether the record carries a real (non-sentinel) title.
func (d *JobDetail) HasTitle() bool {
	title := strings.TrimSpace(d.Title)
	return title != "" && title != SentinelTitle
}

// HasCompany reports whether the record carries a real (non-sentinel) company.
func (d *JobDetail) HasCompany() bool {
	company := strings.TrimSpace(d.Company)
	return company != "" && company != SentinelCompany
}

// normalize fills empty title/company with sentinels and trims whitespace.
func (d *JobDetail) normalize() {
	d.Title = strings.TrimSpace(d.Title)
	if d.Title == "" {
		d.Title = SentinelTitle
	}
	d.Company = strings.TrimSpace(d.Company)
	if d.Company == "" {
		d.Company = SentinelCompany
	}
}

// Strategy identifies which fallback step produced a result.
type Strategy string

// The fallback chain in order.
const (
	StrategyStructured Strategy = "structured_data"
	StrategyMicrodata  Strategy = "microdata"
	StrategySite       Strategy = "site_heuristics"
	StrategyLLM        Strategy = "llm"
)

// Status is the explicit outcome of one strategy: found a record, found
// nothing (advance the chain), or failed (also advance, but with a cause
// worth logging). Fallback control flow is data, not error branching.
type Status string

// Strategy outcomes.
const (
	StatusOK       Status = "ok"
	StatusNotFound Status = "not_found"
	StatusFailed   Status = "failed"
)

// Outcome is the result of one strategy attempt.
type Outcome struct {
	Status   Status
	Strategy Strategy
	Detail   *JobDetail
	Err      error
}

func found(strategy Strategy, detail *JobDetail) Outcome {
	detail.normalize()
	return Outcome{Status: StatusOK, Strategy: strategy, Detail: detail}
}

func notFound(strategy Strategy) Outcome {
	return Outcome{Status: StatusNotFound, Strategy: strategy}
}

func failed(strategy Strategy, err error) Outcome {
	return Outcome{Status: StatusFailed, Strategy: strategy, Err: err}
}
