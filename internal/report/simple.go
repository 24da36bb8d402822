package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/harvester/internal/model"
)

// defaultFailureLimit is how many failures SimpleWriter prints unless verbose.
const defaultFailureLimit = 20

// SimpleWriter outputs human-readable text reports.
//
// Design decision: Plain ASCII without colors, so the output can be piped
// to files and other tools unchanged.
type SimpleWriter struct {
	baseWriter

	// verbose prints every failure instead of the first few.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose prints every recorded failure.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the report in human-readable format.
func (w *SimpleWriter) Write(report *model.CrawlReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeSummary(&sb, report)
	w.writeFailures(&sb, report)
	w.writeFooter(&sb, report)

	return io.WriteString(w.output, sb.String())
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.CrawlReport) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                         HARVESTER REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Unit:           %s\n", report.Unit)
	fmt.Fprintf(sb, "Start URL:      %s\n", report.StartURL)
	fmt.Fprintf(sb, "Started:        %s\n", report.StartedAt.Format(timeLayout))
	if !report.FinishedAt.IsZero() {
		fmt.Fprintf(sb, "Elapsed:        %s\n", report.Elapsed().Round(time.Millisecond))
	}
	if report.RunID != 0 {
		fmt.Fprintf(sb, "Run ID:         %d\n", report.RunID)
	}
	fmt.Fprintf(sb, "Status:         %s\n", status(report))
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeSummary(sb *strings.Builder, report *model.CrawlReport) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("VISIT SUMMARY\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	for _, oc := range outcomeCounts(report.Stats) {
		fmt.Fprintf(sb, "  %-10s %d\n", strings.ToUpper(string(oc.outcome))+":", oc.count)
	}
	sb.WriteString("\n")
	fmt.Fprintf(sb, "  SCHEDULED: %d\n", report.Stats.Scheduled)
	fmt.Fprintf(sb, "  HANDLERS:  %d processors dispatched\n", report.Stats.Dispatched)
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeFailures(sb *strings.Builder, report *model.CrawlReport) {
	if len(report.Failures) == 0 {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("FAILURES\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	failures := report.Failures
	if !w.verbose && len(failures) > defaultFailureLimit {
		failures = failures[:defaultFailureLimit]
	}
	for _, f := range failures {
		fmt.Fprintf(sb, "  [%s] %s\n", strings.ToUpper(string(f.Outcome)), f.URL)
		if f.StatusCode != 0 {
			fmt.Fprintf(sb, "      Status:   %d\n", f.StatusCode)
		}
		if f.Attempts > 1 {
			fmt.Fprintf(sb, "      Attempts: %d\n", f.Attempts)
		}
		if f.Error != "" {
			fmt.Fprintf(sb, "      Error:    %s\n", f.Error)
		}
	}
	if rest := len(report.Failures) - len(failures); rest > 0 {
		fmt.Fprintf(sb, "\n  ... and %d more (use --verbose to list all)\n", rest)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeFooter(sb *strings.Builder, report *model.CrawlReport) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	if len(report.PerformedSteps) > 0 {
		fmt.Fprintf(sb, "Steps: %s\n", strings.Join(report.PerformedSteps, " -> "))
	}
	sb.WriteString("\n")
}
