package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/harvester/internal/model"
)

// JSONWriter outputs reports in JSON format for tool integration.
//
// Design decision: standard encoding/json is enough here; the report is a
// plain struct tree with no performance pressure.
type JSONWriter struct {
	baseWriter

	indent       bool
	indentPrefix string
	indentString string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint is WithIndent("", "  ").
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the report in JSON format. ErrorMessage is filled from
// Error when it is empty, since Error itself is not serialized.
func (w *JSONWriter) Write(report *model.CrawlReport) (int, error) {
	syncErrorMessage(report)
	return w.writeJSON(report)
}

func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error

	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return 0, err
	}

	data = append(data, '\n')
	return w.output.Write(data)
}

func syncErrorMessage(report *model.CrawlReport) {
	if report.Error != nil && report.ErrorMessage == "" {
		report.ErrorMessage = report.Error.Error()
	}
}

// JSONReport wraps a report with the version of the tool that produced it.
type JSONReport struct {
	// Version is the harvester version.
	Version string `json:"version"`

	// Elapsed is the run duration in seconds.
	Elapsed float64 `json:"elapsed_seconds"`

	// Report is the crawl report.
	Report *model.CrawlReport `json:"report"`
}

// FullJSONWriter outputs reports inside a JSONReport wrapper.
type FullJSONWriter struct {
	*JSONWriter

	version string
}

// NewFullJSONWriter creates a writer for wrapped reports.
func NewFullJSONWriter(output io.Writer, version string, opts ...JSONWriterOption) *FullJSONWriter {
	return &FullJSONWriter{
		JSONWriter: NewJSONWriter(output, opts...),
		version:    version,
	}
}

// Write outputs the report wrapped with metadata.
func (w *FullJSONWriter) Write(report *model.CrawlReport) (int, error) {
	syncErrorMessage(report)
	return w.writeJSON(&JSONReport{
		Version: w.version,
		Elapsed: report.Elapsed().Seconds(),
		Report:  report,
	})
}
