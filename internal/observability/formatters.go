// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/apply-assist/internal/classify"
	"github.com/jonathan/apply-assist/internal/company"
	"github.com/jonathan/apply-assist/internal/extract"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		// Truncate long lines
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintClassification outputs a summary of the page classification.
func (p *Printer) PrintClassification(c *classify.Classification) {
	if c == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Type:       %s\n", c.Type))
	sb.WriteString(fmt.Sprintf("Confidence: %.2f\n", c.Confidence))
	sb.WriteString(fmt.Sprintf("Method:     %s", c.Method))

	if len(c.Signals) > 0 {
		sb.WriteString("\n\nSignals:\n")
		count := min(len(c.Signals), maxItemsToShow)
		for i := 0; i < count; i++ {
			sb.WriteString(fmt.Sprintf("  • %s\n", c.Signals[i]))
		}
		if len(c.Signals) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(c.Signals)-maxItemsToShow))
		}
	}

	p.printBox("PAGE CLASSIFICATION", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintJobDetail outputs a human-readable summary of the extracted record.
func (p *Printer) PrintJobDetail(detail *extract.JobDetail, strategy extract.Strategy) {
	if detail == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Title:    %s\n", detail.Title))
	sb.WriteString(fmt.Sprintf("Company:  %s\n", detail.Company))
	if detail.Location != "" {
		sb.WriteString(fmt.Sprintf("Location: %s\n", detail.Location))
	}
	if detail.Salary != "" {
		sb.WriteString(fmt.Sprintf("Salary:   %s\n", detail.Salary))
	}
	if strategy != "" {
		sb.WriteString(fmt.Sprintf("Via:      %s\n", strategy))
	}

	if len(detail.Requirements) > 0 {
		sb.WriteString("\nRequirements:\n")
		count := min(len(detail.Requirements), maxItemsToShow)
		for i := 0; i < count; i++ {
			sb.WriteString(fmt.Sprintf("  • %s\n", detail.Requirements[i]))
		}
		if len(detail.Requirements) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(detail.Requirements)-maxItemsToShow))
		}
	}

	p.printBox("JOB RECORD", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintDossier outputs the dossier's filled fields with confidence scores.
func (p *Printer) PrintDossier(d *company.Dossier) {
	if d == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Company:  %s\n", d.Company))
	if d.Domain != "" {
		sb.WriteString(fmt.Sprintf("Domain:   %s\n", d.Domain))
	}
	sb.WriteString(fmt.Sprintf("Coverage: %.0f%% (%d pages visited)\n", d.Coverage*100, len(d.VisitedURLs)))

	keys := d.FilledKeys()
	if len(keys) > 0 {
		sb.WriteString("\n")
		for _, key := range keys {
			field := d.Fields[key]
			value := field.Value
			if len(value) > 30 {
				value = value[:27] + "..."
			}
			sb.WriteString(fmt.Sprintf("%-17s %s (%.2f)\n", key+":", value, field.Confidence))
		}
	}

	p.printBox("COMPANY DOSSIER", strings.TrimSuffix(sb.String(), "\n"))
}
