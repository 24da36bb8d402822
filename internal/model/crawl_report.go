package model

import "time"

// CrawlReport summarizes one run of a crawl unit.
// It is filled by the pipeline steps and rendered by the report package.
type CrawlReport struct {
	// Unit is the crawl unit name.
	Unit string `json:"unit"`

	// StartURL is the seed address.
	StartURL string `json:"start_url"`

	// StartedAt is when the unit was started.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when the unit quiesced or was cancelled.
	FinishedAt time.Time `json:"finished_at"`

	// Stats holds the final counters.
	Stats Stats `json:"stats"`

	// Failures lists visits that did not reach dispatch, in completion order.
	// Skipped visits are not included.
	Failures []VisitRecord `json:"failures,omitempty"`

	// Error is set when the run did not complete cleanly, e.g. the seed
	// visit failed or the crawl was cancelled.
	Error error `json:"-"`

	// ErrorMessage mirrors Error for serialization.
	ErrorMessage string `json:"error,omitempty"`

	// PerformedSteps lists pipeline steps that ran, in order.
	PerformedSteps []string `json:"performed_steps,omitempty"`

	// RunID is the journal identifier of this run, 0 when not journaled.
	RunID int64 `json:"run_id,omitempty"`
}

// NewCrawlReport creates a report for the named unit.
func NewCrawlReport(unit, startURL string) *CrawlReport {
	return &CrawlReport{
		Unit:      unit,
		StartURL:  startURL,
		StartedAt: time.Now(),
		Failures:  make([]VisitRecord, 0),
	}
}

// Elapsed returns the run duration, or zero if the run has not finished.
func (r *CrawlReport) Elapsed() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Completed reports whether the run quiesced without error.
func (r *CrawlReport) Completed() bool {
	return !r.FinishedAt.IsZero() && r.Error == nil
}
