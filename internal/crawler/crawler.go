package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/cenkalti/backoff/v4"
	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/nao1215/harvester/internal/model"
)

const (
	// maxRecordedFailures bounds the failure list kept for reports.
	maxRecordedFailures = 1000

	// drainLimit is how much of a rejected response body is discarded so the
	// connection can be reused.
	drainLimit = 64 << 10
)

// Crawler fetches pages and dispatches them to handlers.
//
// At most Concurrency fetches are in flight at any time. Visit may be
// called from any goroutine, including from inside processors.
type Crawler[S any] struct {
	name        string
	client      *http.Client
	userAgent   string
	sem         *semaphore.Weighted
	maxPermit   int64
	registry    registry[S]
	state       S
	logger      *slog.Logger
	retry       RetryPolicy
	limiter     *rate.Limiter
	revisit     RevisitPolicy
	visited     *visitedSet
	maxBodySize int64
	journal     Journal

	// tasks tracks every processor and asynchronous visit so the owner can
	// wait for quiescence.
	tasks    errgroup.Group
	inFlight atomic.Int64

	stats    counters
	failMu   sync.Mutex
	failures []model.VisitRecord
}

// NewCrawler builds a crawler with a permit pool of size concurrency.
// It fails if handlers recorded a registration error.
func NewCrawler[S any](concurrency int, handlers *Handlers[S], state S, client *http.Client, opts ...Option) (*Crawler[S], error) {
	s := newSettings(opts)
	s.client = client
	return newCrawler(concurrency, handlers, state, s)
}

func newCrawler[S any](concurrency int, handlers *Handlers[S], state S, s *settings) (*Crawler[S], error) {
	if concurrency < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidConcurrency, concurrency)
	}
	if s.client == nil {
		return nil, ErrNilClient
	}
	if handlers == nil {
		handlers = NewHandlers[S]()
	}
	if err := handlers.Err(); err != nil {
		return nil, err
	}

	c := &Crawler[S]{
		name:        s.name,
		client:      s.client,
		userAgent:   s.userAgent,
		sem:         semaphore.NewWeighted(int64(concurrency)),
		maxPermit:   int64(concurrency),
		registry:    handlers.freeze(),
		state:       state,
		logger:      s.logger,
		retry:       s.retry,
		revisit:     s.revisit,
		visited:     newVisitedSet(),
		maxBodySize: s.maxBodySize,
		journal:     s.journal,
	}
	if s.name != "" {
		c.logger = c.logger.With("unit", s.name)
	}
	if s.rps > 0 {
		burst := s.burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(s.rps), burst)
	}
	return c, nil
}

// State returns the unit-wide user state.
func (c *Crawler[S]) State() S {
	return c.state
}

// Concurrency returns the size of the permit pool.
func (c *Crawler[S]) Concurrency() int {
	return int(c.maxPermit)
}

// Logger returns the crawler's logger, already tagged with the unit name.
// Processors use it so their output is attributed to the unit.
func (c *Crawler[S]) Logger() *slog.Logger {
	return c.logger
}

// Visit fetches target and dispatches the page to the registered handlers.
//
// Visit blocks until the page has been dispatched or abandoned. Processors
// it launches keep running after it returns. The returned error describes
// why a visit was abandoned; it has already been logged and recorded, and
// callers inside processors usually ignore it.
func (c *Crawler[S]) Visit(ctx context.Context, target *url.URL, pt model.PageType) error {
	if target == nil {
		return fmt.Errorf("%w: nil address", ErrVisitFailed)
	}
	c.stats.scheduled.Add(1)

	rec := model.VisitRecord{
		Unit:          c.name,
		URL:           target.String(),
		PageType:      pt.String(),
		ContentLength: -1,
	}

	if c.revisit == SkipVisited && !c.visited.add(target) {
		c.stats.skipped.Add(1)
		c.logger.Debug("skipping visited address", "url", rec.URL)
		rec.Outcome = model.OutcomeSkipped
		c.record(ctx, rec)
		return ErrAlreadyVisited
	}

	if err := c.sem.Acquire(ctx, 1); err != nil {
		err = c.cancelled(&rec, err)
		c.record(ctx, rec)
		return err
	}
	started := time.Now()
	err := c.visitWithPermit(ctx, target, pt, &rec)
	c.sem.Release(1)

	rec.Duration = time.Since(started)
	c.record(ctx, rec)
	return err
}

// VisitAsync schedules a visit on the crawler's task group and returns
// immediately. The visit counts toward quiescence from this call on.
func (c *Crawler[S]) VisitAsync(ctx context.Context, target *url.URL, pt model.PageType) {
	c.spawn(func() {
		_ = c.Visit(ctx, target, pt) //nolint:errcheck // logged and recorded by Visit
	})
}

// visitWithPermit runs the fetch, materialize, parse and dispatch steps.
// The caller holds a permit for its whole duration.
func (c *Crawler[S]) visitWithPermit(ctx context.Context, target *url.URL, pt model.PageType, rec *model.VisitRecord) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return c.cancelled(rec, ctxErr)
			}
			// The throttle wait would outlast the context deadline.
			rec.Outcome = model.OutcomeFailed
			rec.Error = err.Error()
			c.stats.failed.Add(1)
			c.logger.Error("visit failed", "url", rec.URL, "attempts", 0, "error", err)
			return fmt.Errorf("%w: %s: %w", ErrVisitFailed, rec.URL, err)
		}
	}

	c.logger.Info("visiting", "url", rec.URL, "page_type", rec.PageType)

	resp, attempts, err := c.fetch(ctx, target)
	rec.Attempts = attempts
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return c.cancelled(rec, ctxErr)
		}
		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			rec.StatusCode = statusErr.Code
		}
		rec.Outcome = model.OutcomeFailed
		rec.Error = err.Error()
		c.stats.failed.Add(1)
		c.logger.Error("visit failed", "url", rec.URL, "attempts", attempts, "error", err)
		return fmt.Errorf("%w: %s: %w", ErrVisitFailed, rec.URL, err)
	}
	rec.StatusCode = resp.StatusCode

	page, err := Materialize(resp, c.maxBodySize)
	if err != nil {
		return c.invalid(rec, err)
	}
	rec.ContentLength = page.ContentLength
	current := target
	if page.URL != nil {
		current = page.URL
	}
	rec.FinalURL = current.String()

	root, err := html.Parse(strings.NewReader(page.Text))
	if err != nil {
		return c.invalid(rec, fmt.Errorf("%w: %w", ErrInvalidContent, err))
	}
	doc := goquery.NewDocumentFromNode(root)
	doc.Url = current

	vc := &Context[S]{
		CurrentAddress: current,
		PageType:       pt,
		State:          c.state,
	}
	c.dispatch(ctx, vc, page, doc)

	rec.Outcome = model.OutcomeOK
	c.stats.visited.Add(1)
	return nil
}

// fetch sends a GET request, retrying transient failures under the retry
// policy. It returns the number of requests sent.
func (c *Crawler[S]) fetch(ctx context.Context, target *url.URL) (*http.Response, int, error) {
	attempts := 0
	operation := func() (*http.Response, error) {
		attempts++
		return c.send(ctx, target)
	}
	notify := func(err error, wait time.Duration) {
		c.logger.Debug("retrying request",
			"url", target.String(),
			"attempt", attempts,
			"wait", wait,
			"error", err,
		)
	}

	b := backoff.WithContext(c.retry.newBackOff(), ctx)
	resp, err := backoff.RetryNotifyWithData(operation, b, notify)
	return resp, attempts, err
}

// send performs a single request. Errors that a retry cannot fix are
// wrapped with backoff.Permanent.
func (c *Crawler[S]) send(ctx context.Context, target *url.URL) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, drainLimit)) //nolint:errcheck // best effort drain
	resp.Body.Close()

	statusErr := &StatusError{Code: resp.StatusCode}
	if retryableStatus(resp.StatusCode) {
		return nil, statusErr
	}
	return nil, backoff.Permanent(statusErr)
}

// dispatch runs response handlers, then selector handlers in registration
// order, each over its matches in document order. Preprocessors run inline;
// processors are launched on the task group.
func (c *Crawler[S]) dispatch(ctx context.Context, vc *Context[S], page *Respond, doc *goquery.Document) {
	for _, h := range c.registry.responses {
		if run, ok := h.prepare(vc, page); ok {
			c.launch(ctx, run)
		}
	}
	for _, b := range c.registry.selectors {
		doc.FindMatcher(b.matcher).Each(func(i int, s *goquery.Selection) {
			if run, ok := b.handler.prepare(vc, newElement(i, s)); ok {
				c.launch(ctx, run)
			}
		})
	}
}

func (c *Crawler[S]) launch(ctx context.Context, run continuation[S]) {
	c.stats.dispatched.Add(1)
	c.spawn(func() {
		run(ctx, c)
	})
}

// spawn runs f on the task group. The in-flight count is raised before the
// goroutine starts, so Wait cannot observe zero between a spawn and the
// work it represents.
func (c *Crawler[S]) spawn(f func()) {
	c.inFlight.Add(1)
	c.tasks.Go(func() error {
		defer c.inFlight.Add(-1)
		f()
		return nil
	})
}

// Wait blocks until every spawned task has finished, or ctx is done.
// On cancellation it returns ctx.Err() without waiting for processors that
// ignore their context; its helper goroutine exits once they do.
func (c *Crawler[S]) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		_ = c.tasks.Wait() //nolint:errcheck // tasks never return errors
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InFlight returns the number of spawned tasks that have not finished.
func (c *Crawler[S]) InFlight() int64 {
	return c.inFlight.Load()
}

// Stats returns a snapshot of the crawl counters.
func (c *Crawler[S]) Stats() model.Stats {
	return c.stats.snapshot()
}

// Failures returns the records of visits that did not reach dispatch,
// in completion order. At most maxRecordedFailures are kept.
func (c *Crawler[S]) Failures() []model.VisitRecord {
	c.failMu.Lock()
	defer c.failMu.Unlock()
	return append([]model.VisitRecord(nil), c.failures...)
}

func (c *Crawler[S]) cancelled(rec *model.VisitRecord, err error) error {
	rec.Outcome = model.OutcomeCancelled
	rec.Error = err.Error()
	c.stats.cancelled.Add(1)
	c.logger.Debug("visit cancelled", "url", rec.URL, "error", err)
	return err
}

func (c *Crawler[S]) invalid(rec *model.VisitRecord, err error) error {
	rec.Outcome = model.OutcomeInvalid
	rec.Error = err.Error()
	c.stats.invalid.Add(1)
	c.logger.Warn("invalid content", "url", rec.URL, "error", err)
	return err
}

// record stores a finished visit in the failure list and the journal.
// Journal writes outlive cancellation so the last visits of a cancelled
// crawl are still recorded.
func (c *Crawler[S]) record(ctx context.Context, rec model.VisitRecord) {
	rec.Timestamp = time.Now()

	switch rec.Outcome {
	case model.OutcomeFailed, model.OutcomeInvalid, model.OutcomeCancelled:
		c.failMu.Lock()
		if len(c.failures) < maxRecordedFailures {
			c.failures = append(c.failures, rec)
		}
		c.failMu.Unlock()
	}

	if c.journal == nil {
		return
	}
	if err := c.journal.RecordVisit(context.WithoutCancel(ctx), rec); err != nil {
		c.logger.Warn("failed to journal visit", "url", rec.URL, "error", err)
	}
}

// counters are the live crawl statistics.
type counters struct {
	scheduled  atomic.Int64
	visited    atomic.Int64
	failed     atomic.Int64
	invalid    atomic.Int64
	skipped    atomic.Int64
	cancelled  atomic.Int64
	dispatched atomic.Int64
}

func (c *counters) snapshot() model.Stats {
	return model.Stats{
		Scheduled:  c.scheduled.Load(),
		Visited:    c.visited.Load(),
		Failed:     c.failed.Load(),
		Invalid:    c.invalid.Load(),
		Skipped:    c.skipped.Load(),
		Cancelled:  c.cancelled.Load(),
		Dispatched: c.dispatched.Load(),
	}
}
