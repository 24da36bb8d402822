package report

import (
	"io"
	"sync"

	"github.com/nao1215/harvester/internal/model"
)

// Writer writes a crawl report in some format.
type Writer interface {
	// Write outputs the report and returns the number of bytes written.
	Write(report *model.CrawlReport) (int, error)
}

// MultiWriter writes to multiple Writers in order.
//
// Design decision: This is separate from io.MultiWriter because our Writer
// interface writes reports, not bytes.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to every writer and stops on the first error.
func (m *MultiWriter) Write(report *model.CrawlReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// LockedWriter serializes writes to a shared Writer, so reports of units
// that finish at the same time do not interleave.
type LockedWriter struct {
	mu sync.Mutex
	w  Writer
}

// NewLockedWriter wraps w.
func NewLockedWriter(w Writer) *LockedWriter {
	return &LockedWriter{w: w}
}

// Write implements Writer.
func (l *LockedWriter) Write(report *model.CrawlReport) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(report)
}

type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// outcomeCount pairs an outcome with its count from Stats.
type outcomeCount struct {
	outcome model.Outcome
	count   int64
}

// outcomeCounts lists terminal visit outcomes in a fixed order.
func outcomeCounts(s model.Stats) []outcomeCount {
	return []outcomeCount{
		{model.OutcomeOK, s.Visited},
		{model.OutcomeFailed, s.Failed},
		{model.OutcomeInvalid, s.Invalid},
		{model.OutcomeSkipped, s.Skipped},
		{model.OutcomeCancelled, s.Cancelled},
	}
}

// status returns a one-line run status.
func status(report *model.CrawlReport) string {
	switch {
	case report.Error != nil:
		return "ERROR - " + report.Error.Error()
	case report.ErrorMessage != "":
		return "ERROR - " + report.ErrorMessage
	case report.FinishedAt.IsZero():
		return "Running"
	default:
		return "Complete"
	}
}

// truncateString truncates a string to maxLen bytes with an ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

const timeLayout = "2006-01-02 15:04:05 MST"
