// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jonathan/article-engine/internal/ledger"
	"github.com/jonathan/article-engine/internal/types"
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

// PrintJob outputs a human-readable summary of one job.
func (p *Printer) PrintJob(job *types.ArticleJob) {
	if job == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("ID:       %s\n", job.ID))
	sb.WriteString(fmt.Sprintf("Topic:    %s\n", job.SeedTopic))
	sb.WriteString(fmt.Sprintf("Status:   %s\n", job.Status))
	sb.WriteString(fmt.Sprintf("Retries:  %d\n", job.RetryCount))
	sb.WriteString(fmt.Sprintf("Created:  %s", job.CreatedAt.Format(time.RFC3339)))

	if job.ScheduledAt != nil {
		sb.WriteString(fmt.Sprintf("\nScheduled: %s", job.ScheduledAt.Format(time.RFC3339)))
	}
	if job.PublishedPostURL != nil {
		sb.WriteString(fmt.Sprintf("\nPost:     %s", *job.PublishedPostURL))
	}
	if job.ErrorMessage != nil {
		msg := *job.ErrorMessage
		if len(msg) > 45 {
			msg = msg[:42] + "..."
		}
		sb.WriteString(fmt.Sprintf("\nError:    %s", msg))
	}
	if len(job.Categories) > 0 {
		sb.WriteString(fmt.Sprintf("\nCategories: %s", strings.Join(job.Categories, ", ")))
	}
	if len(job.Tags) > 0 {
		sb.WriteString(fmt.Sprintf("\nTags:     %s", strings.Join(job.Tags, ", ")))
	}

	p.printBox("ARTICLE JOB", sb.String())
}

// PrintJobList outputs a compact listing of jobs.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintJobList(jobs []types.ArticleJob) {
	if len(jobs) == 0 {
		fmt.Fprintln(p.out, "No jobs found.")
		return
	}

	for _, job := range jobs {
		topic := job.SeedTopic
		if len(topic) > 32 {
			topic = topic[:29] + "..."
		}
		fmt.Fprintf(p.out, "%s  %-10s  %s\n", job.ID, job.Status, topic)
	}
	fmt.Fprintf(p.out, "\n%d job(s)\n", len(jobs))
}

// PrintStatistics outputs queue counts grouped by status.
func (p *Printer) PrintStatistics(stats *types.QueueStatistics) {
	if stats == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Queued:     %d\n", stats.Queued))
	sb.WriteString(fmt.Sprintf("Processing: %d\n", stats.Processing))
	sb.WriteString(fmt.Sprintf("Completed:  %d\n", stats.Completed))
	sb.WriteString(fmt.Sprintf("Failed:     %d\n", stats.Failed))
	sb.WriteString(fmt.Sprintf("Published:  %d\n", stats.Published))
	sb.WriteString(fmt.Sprintf("Total:      %d", stats.Total))

	p.printBox("QUEUE STATISTICS", sb.String())
}

// PrintAuditTrail outputs the phases, costs and errors of one run.
func (p *Printer) PrintAuditTrail(trail *ledger.AuditTrail) {
	if trail == nil {
		return
	}

	var sb strings.Builder
	if trail.Summary != nil {
		sb.WriteString(fmt.Sprintf("Status:   %s\n", trail.Summary.Status))
		sb.WriteString(fmt.Sprintf("Cost:     $%.4f\n", trail.Summary.TotalCostUSD))
		sb.WriteString("\n")
	}

	if len(trail.Phases) > 0 {
		sb.WriteString("Phases:\n")
		for _, phase := range trail.Phases {
			marker := statusMarker(phase.Status)
			sb.WriteString(fmt.Sprintf("  %s %s", marker, phase.Phase))
			if phase.DurationSeconds > 0 {
				sb.WriteString(fmt.Sprintf(" (%.1fs)", phase.DurationSeconds))
			}
			sb.WriteString("\n")
		}
	}

	if len(trail.Errors) > 0 {
		sb.WriteString("\nErrors:\n")
		count := min(len(trail.Errors), maxItemsToShow)
		for i := 0; i < count; i++ {
			msg := trail.Errors[i].Message
			if len(msg) > 48 {
				msg = msg[:45] + "..."
			}
			sb.WriteString(fmt.Sprintf("  ⚠ %s\n", msg))
		}
		if len(trail.Errors) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(trail.Errors)-maxItemsToShow))
		}
	}

	p.printBox("EXECUTION AUDIT TRAIL", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintCostBreakdown outputs per-API spend for one run.
func (p *Printer) PrintCostBreakdown(summary *ledger.ExecutionSummary) {
	if summary == nil || len(summary.CostByAPI) == 0 {
		return
	}

	var sb strings.Builder
	for api, cost := range summary.CostByAPI {
		sb.WriteString(fmt.Sprintf("%-12s $%.4f\n", api, cost))
	}
	sb.WriteString(fmt.Sprintf("%-12s $%.4f", "total", summary.TotalCostUSD))

	p.printBox("COST BREAKDOWN", sb.String())
}

func statusMarker(status string) string {
	switch status {
	case ledger.PhaseCompleted:
		return "✓"
	case ledger.PhaseFailed:
		return "✗"
	default:
		return "…"
	}
}
