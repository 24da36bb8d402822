package crawler

import (
	"errors"
	"fmt"
	"net/http"
)

// Construction errors. These indicate a code or configuration defect and are
// returned by NewHandlers users, NewCrawler and NewCollector before any
// request is sent.
var (
	// ErrInvalidSelector is recorded when a selector pattern does not compile.
	ErrInvalidSelector = errors.New("invalid selector")

	// ErrNilHandler is recorded when a handler was built without a preprocessor
	// or processor.
	ErrNilHandler = errors.New("handler has no preprocessor or processor")

	// ErrInvalidStartURL is returned when a unit's starting address is not an
	// absolute http(s) URL.
	ErrInvalidStartURL = errors.New("invalid starting address")

	// ErrInvalidConcurrency is returned when the permit pool size is not positive.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")

	// ErrNilClient is returned when a crawler is built without an HTTP client.
	ErrNilClient = errors.New("http client is nil")
)

// Per-visit errors. Visit returns these for information only; they are
// already logged and never stop the crawl.
var (
	// ErrVisitFailed wraps the terminal fetch error after retries are spent.
	ErrVisitFailed = errors.New("visit failed")

	// ErrInvalidContent is returned when the response body cannot be read.
	ErrInvalidContent = errors.New("invalid content")

	// ErrAlreadyVisited is returned when the revisit policy drops a visit.
	ErrAlreadyVisited = errors.New("already visited")
)

// Lifecycle errors returned by Collector.Start.
var (
	// ErrSeedFailed is returned when the seed visit did not reach dispatch.
	// Start still waits for quiescence before returning it.
	ErrSeedFailed = errors.New("seed visit failed")

	// ErrAlreadyStarted is returned when Start is called more than once.
	ErrAlreadyStarted = errors.New("collector already started")
)

// StatusError reports a response whose status code is not 2xx.
type StatusError struct {
	// Code is the HTTP status code.
	Code int
}

// Error implements error.
func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d %s", e.Code, http.StatusText(e.Code))
}
