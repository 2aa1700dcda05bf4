// Package main provides the entry point for the application assistant CLI.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "apply_agent",
	Short: "Job posting analysis agent",
	Long:  "apply_agent analyzes a single job posting URL end-to-end: page classification, job record extraction, and company research into a confidence-scored dossier.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
