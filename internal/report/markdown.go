package report

import (
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/harvester/internal/model"
)

// MarkdownWriter outputs reports in Markdown format for sharing.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *model.CrawlReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeSummary(md, report)
	w.writeFailures(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.CrawlReport) {
	md.H1("Harvester Report: " + report.Unit)
	md.PlainText("")

	rows := [][]string{
		{"Unit", "`" + report.Unit + "`"},
		{"Start URL", report.StartURL},
		{"Started", report.StartedAt.Format(timeLayout)},
	}
	if !report.FinishedAt.IsZero() {
		rows = append(rows, []string{"Elapsed", report.Elapsed().Round(time.Millisecond).String()})
	}
	if report.RunID != 0 {
		rows = append(rows, []string{"Run ID", strconv.FormatInt(report.RunID, 10)})
	}
	rows = append(rows, []string{"Status", w.statusText(report)})

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) statusText(report *model.CrawlReport) string {
	s := status(report)
	switch {
	case strings.HasPrefix(s, "ERROR"):
		return "❌ " + s
	case s == "Running":
		return "⏳ Running"
	default:
		return "✅ Complete"
	}
}

func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, report *model.CrawlReport) {
	md.H2("Visit Summary")
	md.PlainText("")

	counts := outcomeCounts(report.Stats)
	rows := make([][]string, 0, len(counts)+2)
	for _, oc := range counts {
		rows = append(rows, []string{string(oc.outcome), strconv.FormatInt(oc.count, 10)})
	}
	rows = append(rows,
		[]string{"**Scheduled**", "**" + strconv.FormatInt(report.Stats.Scheduled, 10) + "**"},
		[]string{"Processors dispatched", strconv.FormatInt(report.Stats.Dispatched, 10)},
	)
	md.Table(markdown.TableSet{
		Header: []string{"Outcome", "Count"},
		Rows:   rows,
	})
	md.PlainText("")

	if report.Stats.Total() > 0 {
		w.writePieChart(md, counts)
	}
	w.writeAlert(md, report)
}

func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, counts []outcomeCount) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Visit Outcomes"),
		piechart.WithShowData(true),
	)
	for _, oc := range counts {
		if oc.count > 0 {
			chart.LabelAndIntValue(string(oc.outcome), uint64(oc.count))
		}
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, report *model.CrawlReport) {
	s := report.Stats
	switch {
	case report.Error != nil:
		md.Cautionf("The run did not complete: %s", report.Error.Error())
	case s.Failed+s.Invalid > 0:
		md.Warningf("%d visit(s) failed and %d returned unreadable content.", s.Failed, s.Invalid)
	case s.Cancelled > 0:
		md.Importantf("%d visit(s) were cancelled.", s.Cancelled)
	default:
		md.Tip("Every visit completed.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeFailures(md *markdown.Markdown, report *model.CrawlReport) {
	if len(report.Failures) == 0 {
		return
	}

	md.H2("Failures")
	md.PlainText("")

	rows := make([][]string, len(report.Failures))
	for i, f := range report.Failures {
		code := "-"
		if f.StatusCode != 0 {
			code = strconv.Itoa(f.StatusCode)
		}
		errText := f.Error
		if errText == "" {
			errText = "-"
		}
		rows[i] = []string{
			string(f.Outcome),
			truncateString(f.URL, 60),
			code,
			strconv.Itoa(f.Attempts),
			truncateString(errText, 60),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Outcome", "URL", "Status", "Attempts", "Error"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [harvester](https://github.com/nao1215/harvester)*")
}
