package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/apply-assist/internal/db"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List past analysis runs",
	Long:  "List recent runs and their outcomes from the database. With --run-id, shows the artifacts stored for one run instead.",
	RunE:  runRuns,
}

var (
	runsDatabaseURL string
	runsLimit       int
	runsRunID       string
	runsStep        string
)

func init() {
	runsCmd.Flags().StringVar(&runsDatabaseURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "Maximum runs to list")
	runsCmd.Flags().StringVar(&runsRunID, "run-id", "", "Show artifacts for this run instead of listing runs")
	runsCmd.Flags().StringVar(&runsStep, "step", "", "Print one stored artifact (requires --run-id)")

	rootCmd.AddCommand(runsCmd)
}

func runRuns(_ *cobra.Command, _ []string) error {
	ctx := context.Background()

	databaseURL := runsDatabaseURL
	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable or --db-url flag is required")
	}

	database, err := db.Connect(ctx, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	if runsRunID != "" {
		runID, err := uuid.Parse(runsRunID)
		if err != nil {
			return fmt.Errorf("invalid run ID: %w", err)
		}
		return showRun(ctx, database, runID)
	}

	runs, err := database.ListRuns(ctx, runsLimit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return nil
	}
	for _, run := range runs {
		line := fmt.Sprintf("%s  %-9s  %s", run.ID, run.Status, run.JobURL)
		if run.Company != "" {
			line += fmt.Sprintf("  (%s at %s)", run.RoleTitle, run.Company)
		}
		if run.StopReason != "" {
			line += "  [" + run.StopReason + "]"
		}
		fmt.Println(line)
	}
	return nil
}

func showRun(ctx context.Context, database *db.DB, runID uuid.UUID) error {
	run, err := database.GetRun(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to load run: %w", err)
	}

	fmt.Printf("Run %s\n  URL:     %s\n  Status:  %s\n  Started: %s\n", run.ID, run.JobURL, run.Status, run.CreatedAt.Format(time.RFC3339))
	if run.StopReason != "" {
		fmt.Printf("  Stopped: %s\n", run.StopReason)
	}

	if runsStep != "" {
		if text, err := database.GetTextArtifact(ctx, runID, runsStep); err == nil && text != "" {
			fmt.Println(text)
			return nil
		}
		data, err := database.GetArtifact(ctx, runID, runsStep)
		if err != nil {
			return fmt.Errorf("failed to load %s artifact: %w", runsStep, err)
		}
		if data == nil {
			return fmt.Errorf("no %s artifact stored for this run", runsStep)
		}
		fmt.Println(string(data))
		return nil
	}

	artifacts, err := database.ListArtifacts(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to list artifacts: %w", err)
	}
	fmt.Println("  Artifacts:")
	for _, a := range artifacts {
		kind := "json"
		if a.HasText {
			kind = "text"
		}
		fmt.Printf("    %-20s (%s)\n", a.Step, kind)
	}
	return nil
}
