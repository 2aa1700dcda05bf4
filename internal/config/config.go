// Package config provides configuration loading and validation for the CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config represents the CLI configuration that can be loaded from a JSON
// file. All fields are optional; missing values use defaults or must be
// provided via CLI flags.
type Config struct {
	// Target
	JobURL string `json:"job_url,omitempty" validate:"omitempty,url"`

	// Credentials
	APIKey       string `json:"api_key,omitempty"`
	SearchAPIKey string `json:"search_api_key,omitempty"`
	SearchCX     string `json:"search_cx,omitempty"`
	DatabaseURL  string `json:"database_url,omitempty"`

	// Artifact persistence fallback when no database is configured
	ArtifactDir string `json:"artifact_dir,omitempty"`

	// Behavior
	UseBrowser    bool `json:"use_browser,omitempty"`
	Headless      bool `json:"headless,omitempty"`
	Verbose       bool `json:"verbose,omitempty"`
	ResearchPages int  `json:"research_pages,omitempty" validate:"omitempty,min=1,max=20"`

	// Deadlines, in minutes
	DeadlineMinutes  int `json:"deadline_minutes,omitempty" validate:"omitempty,min=1,max=40"`
	HumanWaitMinutes int `json:"human_wait_minutes,omitempty" validate:"omitempty,min=1,max=40"`
}

// Defaults applied when a field is unset.
const (
	DefaultDeadlineMinutes  = 15
	DefaultHumanWaitMinutes = 10
	DefaultResearchPages    = 6
)

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// FromEnv fills credential fields from environment variables when unset.
func (c *Config) FromEnv() {
	if c.APIKey == "" {
		c.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if c.SearchAPIKey == "" {
		c.SearchAPIKey = os.Getenv("SEARCH_API_KEY")
	}
	if c.SearchCX == "" {
		c.SearchCX = os.Getenv("SEARCH_CX")
	}
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
}

// Validate checks that the configuration has valid values.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if c.SearchAPIKey != "" && c.SearchCX == "" {
		return fmt.Errorf("config error: 'search_cx' is required when 'search_api_key' is set")
	}
	return nil
}

// ApplyDefaults fills zero-valued fields with their defaults.
func (c *Config) ApplyDefaults() {
	if c.DeadlineMinutes == 0 {
		c.DeadlineMinutes = DefaultDeadlineMinutes
	}
	if c.HumanWaitMinutes == 0 {
		c.HumanWaitMinutes = DefaultHumanWaitMinutes
	}
	if c.ResearchPages == 0 {
		c.ResearchPages = DefaultResearchPages
	}
}

// Deadline returns the base run deadline as a duration.
func (c *Config) Deadline() time.Duration {
	return time.Duration(c.DeadlineMinutes) * time.Minute
}

// HumanWait returns the bounded wait for operator recovery as a duration.
func (c *Config) HumanWait() time.Duration {
	return time.Duration(c.HumanWaitMinutes) * time.Minute
}
