package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathan/apply-assist/internal/classify"
	"github.com/jonathan/apply-assist/internal/company"
	"github.com/jonathan/apply-assist/internal/config"
	"github.com/jonathan/apply-assist/internal/db"
	"github.com/jonathan/apply-assist/internal/llm"
	"github.com/jonathan/apply-assist/internal/pipeline"
)

var analyzeCommand = &cobra.Command{
	Use:   "analyze [url]",
	Short: "Analyze a job posting URL end-to-end",
	Long: `Runs the full analysis pipeline against one job posting URL: acquisition -> classification -> link resolution -> cleaning -> extraction -> company research.

Configuration can be loaded from a JSON file using --config. Command-line arguments override config file values.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAnalyze,
}

var (
	analyzeConfigPath    string
	analyzeURL           string
	analyzeAPIKey        string
	analyzeSearchAPIKey  string
	analyzeSearchCX      string
	analyzeDatabaseURL   string
	analyzeArtifactDir   string
	analyzeUseBrowser    bool
	analyzeHeadless      bool
	analyzeVerbose       bool
	analyzeResearchPages int
	analyzeDeadlineMin   int
	analyzeHumanWaitMin  int
)

func init() {
	// Config file flag (processed first)
	analyzeCommand.Flags().StringVar(&analyzeConfigPath, "config", "", "Path to config.json file (values can be overridden by other flags)")

	analyzeCommand.Flags().StringVarP(&analyzeURL, "url", "u", "", "Job posting URL (may also be given as a positional argument)")
	analyzeCommand.Flags().BoolVar(&analyzeUseBrowser, "use-browser", false, "Use headless browser for SPA sites (requires Chrome)")
	analyzeCommand.Flags().BoolVar(&analyzeHeadless, "headless", true, "Run the browser headless (set false to let an operator clear login walls)")
	analyzeCommand.Flags().BoolVarP(&analyzeVerbose, "verbose", "v", false, "Print detailed debug information")
	analyzeCommand.Flags().IntVar(&analyzeResearchPages, "research-pages", 0, "Maximum company pages to research (default 6)")
	analyzeCommand.Flags().IntVar(&analyzeDeadlineMin, "deadline", 0, "Run time budget in minutes (default 15, hard cap 40)")
	analyzeCommand.Flags().IntVar(&analyzeHumanWaitMin, "human-wait", 0, "Minutes to wait for an operator on login walls and captchas (default 10)")

	// API keys can be passed as flags, or read from env vars
	analyzeCommand.Flags().StringVar(&analyzeAPIKey, "api-key", "", "Gemini API key (optional, defaults to GEMINI_API_KEY env var)")
	analyzeCommand.Flags().StringVar(&analyzeSearchAPIKey, "search-api-key", "", "Custom Search API key (optional, defaults to SEARCH_API_KEY env var)")
	analyzeCommand.Flags().StringVar(&analyzeSearchCX, "search-cx", "", "Custom Search engine ID (optional, defaults to SEARCH_CX env var)")

	// Database URL for artifact and dossier persistence
	analyzeCommand.Flags().StringVar(&analyzeDatabaseURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")
	analyzeCommand.Flags().StringVar(&analyzeArtifactDir, "artifact-dir", "", "Directory for step artifacts (defaults to artifacts/<timestamp> when no database is configured)")

	rootCmd.AddCommand(analyzeCommand)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	// Ctrl-C stops the run; completed stages are still persisted.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadAnalyzeConfig(cmd, args)
	if err != nil {
		return err
	}

	var client llm.Client
	var embedder llm.Embedder
	if cfg.APIKey != "" {
		gemini, err := llm.NewGeminiClient(ctx, nil, cfg.APIKey)
		if err != nil {
			return fmt.Errorf("failed to create LLM client: %w", err)
		}
		defer func() { _ = gemini.Close() }()
		client = gemini
		embedder = gemini
	} else {
		fmt.Fprintln(os.Stderr, "Warning: no GEMINI_API_KEY set; running heuristics only")
	}

	var searcher company.Discoverer
	if cfg.SearchAPIKey != "" {
		s, err := company.NewSearcher(ctx, cfg.SearchAPIKey, cfg.SearchCX)
		if err != nil {
			return fmt.Errorf("failed to create search client: %w", err)
		}
		searcher = s
	}

	var database *db.DB
	if cfg.DatabaseURL != "" {
		database, err = db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer database.Close()
	}

	source, err := newPageSource(ctx, cfg)
	if err != nil {
		return err
	}

	result, err := pipeline.RunPipeline(ctx, pipeline.RunOptions{
		JobURL:        cfg.JobURL,
		Source:        source,
		Client:        client,
		Embedder:      embedder,
		Operator:      stdinOperator(cfg.HumanWait()),
		Searcher:      searcher,
		Database:      database,
		ArtifactDir:   cfg.ArtifactDir,
		ResearchPages: cfg.ResearchPages,
		BaseDeadline:  cfg.Deadline(),
		Verbose:       cfg.Verbose,
	})
	if err != nil {
		return err
	}
	if result.StopReason != "" {
		fmt.Printf("Run stopped early: %s\n", result.StopReason)
	}
	return nil
}

// loadAnalyzeConfig merges config file, CLI overrides, environment, and
// defaults, in that order of increasing precedence for credentials.
func loadAnalyzeConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	var cfg config.Config
	if analyzeConfigPath != "" {
		loaded, err := config.LoadConfig(analyzeConfigPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = *loaded
		if analyzeVerbose {
			fmt.Printf("Loaded config from: %s\n", analyzeConfigPath)
		}
	}

	// Only override if the flag was explicitly set
	if cmd.Flags().Changed("url") {
		cfg.JobURL = analyzeURL
	}
	if len(args) == 1 {
		cfg.JobURL = args[0]
	}
	if cmd.Flags().Changed("api-key") {
		cfg.APIKey = analyzeAPIKey
	}
	if cmd.Flags().Changed("search-api-key") {
		cfg.SearchAPIKey = analyzeSearchAPIKey
	}
	if cmd.Flags().Changed("search-cx") {
		cfg.SearchCX = analyzeSearchCX
	}
	if cmd.Flags().Changed("db-url") {
		cfg.DatabaseURL = analyzeDatabaseURL
	}
	if cmd.Flags().Changed("artifact-dir") {
		cfg.ArtifactDir = analyzeArtifactDir
	}
	if cmd.Flags().Changed("use-browser") {
		cfg.UseBrowser = analyzeUseBrowser
	}
	if cmd.Flags().Changed("headless") {
		cfg.Headless = analyzeHeadless
	} else if !cfg.UseBrowser {
		cfg.Headless = true
	}
	if cmd.Flags().Changed("verbose") {
		cfg.Verbose = analyzeVerbose
	}
	if cmd.Flags().Changed("research-pages") {
		cfg.ResearchPages = analyzeResearchPages
	}
	if cmd.Flags().Changed("deadline") {
		cfg.DeadlineMinutes = analyzeDeadlineMin
	}
	if cmd.Flags().Changed("human-wait") {
		cfg.HumanWaitMinutes = analyzeHumanWaitMin
	}

	cfg.FromEnv()
	cfg.ApplyDefaults()
	if cfg.DatabaseURL == "" && cfg.ArtifactDir == "" {
		cfg.ArtifactDir = filepath.Join("artifacts", time.Now().Format("20060102-150405"))
	}

	if cfg.JobURL == "" {
		return nil, fmt.Errorf("a job posting URL is required (positional argument, --url, or config)")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func newPageSource(ctx context.Context, cfg *config.Config) (pipeline.PageSource, error) {
	if cfg.UseBrowser {
		source, err := pipeline.NewBrowserSource(ctx, cfg.Headless)
		if err != nil {
			return nil, fmt.Errorf("failed to start browser: %w", err)
		}
		return source, nil
	}
	return pipeline.NewHTTPSource(), nil
}

// stdinOperator resolves login walls and captchas when the operator presses
// Enter after clearing the challenge in the live browser.
func stdinOperator(maxWait time.Duration) pipeline.Operator {
	return lineOperator(os.Stdin, maxWait)
}

func lineOperator(in io.Reader, maxWait time.Duration) pipeline.Operator {
	done := make(chan struct{}, 1)
	go func() {
		reader := bufio.NewReader(in)
		for {
			if _, err := reader.ReadString('\n'); err != nil {
				return
			}
			// Non-blocking send so Enter pressed while nothing is
			// waiting cannot wedge the reader goroutine.
			select {
			case done <- struct{}{}:
			default:
			}
		}
	}()
	return &pipeline.ChannelOperator{
		Done:    done,
		MaxWait: maxWait,
		Prompt: func(challenge classify.PageType, url string) {
			fmt.Printf("\nAction needed: %s at %s\nClear it in the browser window, then press Enter here to continue...\n", challenge, url)
		},
	}
}
