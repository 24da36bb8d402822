package model

import "time"

// Outcome is the terminal state of a single visit.
type Outcome string

const (
	// OutcomeOK means the page was fetched, decoded, parsed and dispatched.
	OutcomeOK Outcome = "ok"

	// OutcomeFailed means the fetch failed after the retry budget was spent,
	// or the server answered with a status that is never retried.
	OutcomeFailed Outcome = "failed"

	// OutcomeInvalid means the response body could not be read.
	OutcomeInvalid Outcome = "invalid"

	// OutcomeSkipped means the visit was dropped by the revisit policy
	// before any request was sent.
	OutcomeSkipped Outcome = "skipped"

	// OutcomeCancelled means the crawl was cancelled while the visit waited
	// for a permit or was being fetched.
	OutcomeCancelled Outcome = "cancelled"
)

// VisitRecord describes what happened to one visit.
// Records are written to the journal and summarized in crawl reports.
type VisitRecord struct {
	// Unit is the name of the crawl unit that issued the visit.
	Unit string `json:"unit"`

	// URL is the requested address.
	URL string `json:"url"`

	// FinalURL is the address after redirects. Empty unless a response arrived.
	FinalURL string `json:"final_url,omitempty"`

	// PageType is the classification name, e.g. "index" or "news".
	PageType string `json:"page_type"`

	// StatusCode is the HTTP status of the last response, 0 if none arrived.
	StatusCode int `json:"status_code,omitempty"`

	// ContentLength is the declared content length, -1 when unknown.
	ContentLength int64 `json:"content_length"`

	// Outcome is the terminal state of the visit.
	Outcome Outcome `json:"outcome"`

	// Error is the error text for failed, invalid and cancelled visits.
	Error string `json:"error,omitempty"`

	// Attempts is the number of requests sent, including retries.
	Attempts int `json:"attempts"`

	// Duration is the wall time from permit acquisition to dispatch end.
	Duration time.Duration `json:"duration"`

	// Timestamp is when the visit finished.
	Timestamp time.Time `json:"timestamp"`
}

// Stats is a point-in-time snapshot of crawl counters.
type Stats struct {
	// Scheduled counts calls to Visit, including skipped ones.
	Scheduled int64 `json:"scheduled"`

	// Visited counts visits that reached dispatch.
	Visited int64 `json:"visited"`

	// Failed counts visits abandoned after fetch failure.
	Failed int64 `json:"failed"`

	// Invalid counts visits abandoned because the body was unreadable.
	Invalid int64 `json:"invalid"`

	// Skipped counts visits dropped by the revisit policy.
	Skipped int64 `json:"skipped"`

	// Cancelled counts visits interrupted by cancellation.
	Cancelled int64 `json:"cancelled"`

	// Dispatched counts processors launched by handlers.
	Dispatched int64 `json:"dispatched"`
}

// Total returns the number of visits that reached a terminal outcome.
func (s Stats) Total() int64 {
	return s.Visited + s.Failed + s.Invalid + s.Skipped + s.Cancelled
}
