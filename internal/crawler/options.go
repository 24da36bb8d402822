package crawler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/nao1215/harvester/internal/config"
	"github.com/nao1215/harvester/internal/model"
	"github.com/nao1215/harvester/internal/transport"
)

// Journal receives one record per finished visit.
// Implementations must be safe for concurrent use.
// The crawler only writes to a Journal; it never reads crawl state back.
type Journal interface {
	RecordVisit(ctx context.Context, rec model.VisitRecord) error
}

// settings holds construction-time options shared by NewCrawler and
// NewCollector.
type settings struct {
	logger      *slog.Logger
	client      *http.Client
	transport   transport.Options
	retry       RetryPolicy
	maxBodySize int64
	journal     Journal
	userAgent   string
	name        string
	revisit     RevisitPolicy
	rps         float64
	burst       int
}

func newSettings(opts []Option) *settings {
	s := &settings{
		logger:      slog.Default(),
		transport:   transport.DefaultOptions(),
		retry:       DefaultRetryPolicy(),
		maxBodySize: config.DefaultMaxBodySize,
		userAgent:   config.DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Option configures a Crawler or Collector.
type Option func(*settings)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithHTTPClient sets the HTTP client used for every request.
// When set, NewCollector does not build a client from transport options.
func WithHTTPClient(client *http.Client) Option {
	return func(s *settings) {
		s.client = client
	}
}

// WithTransport sets the options NewCollector uses to build its HTTP client.
func WithTransport(opts transport.Options) Option {
	return func(s *settings) {
		s.transport = opts
	}
}

// WithRetryPolicy sets the retry policy for failed requests.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(s *settings) {
		s.retry = p
	}
}

// WithMaxBodySize caps how many body bytes are read per response.
func WithMaxBodySize(size int64) Option {
	return func(s *settings) {
		s.maxBodySize = size
	}
}

// WithJournal records every finished visit to j.
func WithJournal(j Journal) Option {
	return func(s *settings) {
		s.journal = j
	}
}

// WithUserAgent sets the User-Agent header for NewCrawler.
// NewCollector takes the user agent from the Unit instead.
func WithUserAgent(ua string) Option {
	return func(s *settings) {
		s.userAgent = ua
	}
}

// WithName labels log lines and visit records for NewCrawler.
// NewCollector takes the name from the Unit instead.
func WithName(name string) Option {
	return func(s *settings) {
		s.name = name
	}
}

// WithRevisitPolicy sets the revisit policy for NewCrawler.
// NewCollector takes the policy from the Unit instead.
func WithRevisitPolicy(p RevisitPolicy) Option {
	return func(s *settings) {
		s.revisit = p
	}
}

// WithRateLimit throttles requests to rps per second with the given burst.
// A non-positive rps disables throttling.
func WithRateLimit(rps float64, burst int) Option {
	return func(s *settings) {
		s.rps = rps
		s.burst = burst
	}
}
