package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nao1215/harvester/internal/config"
	"github.com/nao1215/harvester/internal/model"
	"github.com/nao1215/harvester/internal/transport"
)

// Runner is the type-erased view of a Collector.
// It lets units with different state types share one registry.
type Runner interface {
	// Name returns the unit name.
	Name() string

	// StartURL returns the seed address.
	StartURL() string

	// Start runs the crawl until quiescence or cancellation.
	Start(ctx context.Context) error

	// IsRunning reports whether Start is in progress.
	IsRunning() bool

	// Stats returns a snapshot of the crawl counters.
	Stats() model.Stats

	// Report summarizes the crawl so far.
	Report() *model.CrawlReport
}

// Collector runs one crawl unit: a Crawler plus its starting address.
type Collector[S any] struct {
	name    string
	start   *url.URL
	crawler *Crawler[S]
	logger  *slog.Logger

	started atomic.Bool
	running atomic.Bool

	mu         sync.Mutex
	startedAt  time.Time
	finishedAt time.Time
	err        error
}

// NewCollector builds a collector from a unit definition.
//
// The starting address is parsed, defaults are filled in, Register is
// called once, and the HTTP client is built from the transport options
// unless WithHTTPClient was given. Any failure here is a configuration
// defect and no request is sent.
func NewCollector[S any](unit Unit[S], opts ...Option) (*Collector[S], error) {
	start, err := parseStartingAddress(unit.StartingAddress)
	if err != nil {
		return nil, fmt.Errorf("unit %q: %w", unit.Name, err)
	}

	s := newSettings(opts)
	s.name = unit.Name
	s.revisit = unit.Revisit
	s.rps = unit.RequestsPerSecond
	s.burst = unit.Burst
	s.userAgent = unit.UserAgent
	if s.userAgent == "" {
		s.userAgent = config.DefaultUserAgent
	}
	if err := transport.ValidateUserAgent(s.userAgent); err != nil {
		return nil, fmt.Errorf("unit %q: %w", unit.Name, err)
	}

	concurrency := unit.Concurrency
	if concurrency == 0 {
		concurrency = config.DefaultConcurrency
	}

	handlers := NewHandlers[S]()
	if unit.Register != nil {
		unit.Register(handlers)
	}
	if err := handlers.Err(); err != nil {
		return nil, fmt.Errorf("unit %q: %w", unit.Name, err)
	}

	if s.client == nil {
		if err := transport.CheckTarget(start, s.transport); err != nil {
			return nil, fmt.Errorf("unit %q: %w", unit.Name, err)
		}
		client, err := transport.NewHTTPClient(s.transport)
		if err != nil {
			return nil, fmt.Errorf("unit %q: %w", unit.Name, err)
		}
		s.client = client
	}

	c, err := newCrawler(concurrency, handlers, unit.State, s)
	if err != nil {
		return nil, fmt.Errorf("unit %q: %w", unit.Name, err)
	}

	return &Collector[S]{
		name:    unit.Name,
		start:   start,
		crawler: c,
		logger:  c.logger,
	}, nil
}

// Name returns the unit name.
func (c *Collector[S]) Name() string {
	return c.name
}

// StartURL returns the seed address.
func (c *Collector[S]) StartURL() string {
	return c.start.String()
}

// Crawler returns the underlying crawler.
func (c *Collector[S]) Crawler() *Crawler[S] {
	return c.crawler
}

// Start seeds a visit to the starting address as an Index page and blocks
// until every visit and processor spawned from it has finished.
//
// It returns nil when the crawl quiesced, an error wrapping ErrSeedFailed
// when the seed page itself could not be fetched, and ctx.Err() when ctx
// was cancelled first. A Collector runs once; later calls return
// ErrAlreadyStarted.
func (c *Collector[S]) Start(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	c.mu.Lock()
	c.startedAt = time.Now()
	c.mu.Unlock()

	c.logger.Info("crawl started", "start_url", c.start.String(), "concurrency", c.crawler.Concurrency())

	var seedErr error
	c.crawler.spawn(func() {
		seedErr = c.crawler.Visit(ctx, c.start, model.Index())
	})
	c.running.Store(true)

	err := c.crawler.Wait(ctx)
	c.running.Store(false)
	if err == nil {
		// Cancellation that raced with the last task finishing.
		err = ctx.Err()
	}
	if err == nil && seedErr != nil {
		err = fmt.Errorf("%w: %w", ErrSeedFailed, seedErr)
	}

	c.mu.Lock()
	c.finishedAt = time.Now()
	c.err = err
	c.mu.Unlock()

	stats := c.crawler.Stats()
	if err != nil {
		c.logger.Warn("crawl stopped", "error", err, "visited", stats.Visited, "failed", stats.Failed)
		return err
	}
	c.logger.Info("crawl finished", "visited", stats.Visited, "failed", stats.Failed, "dispatched", stats.Dispatched)
	return nil
}

// IsRunning reports whether Start is waiting for quiescence.
func (c *Collector[S]) IsRunning() bool {
	return c.running.Load()
}

// Stats returns a snapshot of the crawl counters.
func (c *Collector[S]) Stats() model.Stats {
	return c.crawler.Stats()
}

// Report summarizes the crawl. It may be called while the crawl runs.
func (c *Collector[S]) Report() *model.CrawlReport {
	c.mu.Lock()
	defer c.mu.Unlock()

	r := model.NewCrawlReport(c.name, c.start.String())
	r.StartedAt = c.startedAt
	r.FinishedAt = c.finishedAt
	r.Stats = c.crawler.Stats()
	r.Failures = c.crawler.Failures()
	if c.err != nil {
		r.Error = c.err
		r.ErrorMessage = c.err.Error()
	}
	return r
}
