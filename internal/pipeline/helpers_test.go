package pipeline

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/harvester/internal/crawler"
	"github.com/nao1215/harvester/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeRunner is a crawler.Runner that finishes immediately.
type fakeRunner struct {
	name     string
	startURL string
	err      error
	stats    model.Stats
	failures []model.VisitRecord
	delay    time.Duration

	mu         sync.Mutex
	started    time.Time
	finished   time.Time
	startCalls int
}

func (f *fakeRunner) Name() string     { return f.name }
func (f *fakeRunner) StartURL() string { return f.startURL }
func (f *fakeRunner) IsRunning() bool  { return false }
func (f *fakeRunner) Stats() model.Stats {
	return f.stats
}

func (f *fakeRunner) Start(ctx context.Context) error {
	f.mu.Lock()
	f.startCalls++
	f.started = time.Now()
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			f.finish()
			return ctx.Err()
		}
	}
	f.finish()
	return f.err
}

func (f *fakeRunner) finish() {
	f.mu.Lock()
	f.finished = time.Now()
	f.mu.Unlock()
}

func (f *fakeRunner) Report() *model.CrawlReport {
	f.mu.Lock()
	defer f.mu.Unlock()

	r := model.NewCrawlReport(f.name, f.startURL)
	r.StartedAt = f.started
	r.FinishedAt = f.finished
	r.Stats = f.stats
	r.Failures = append(r.Failures, f.failures...)
	return r
}

var _ crawler.Runner = (*fakeRunner)(nil)

// newLinkSite serves an index linking to /b and a page without links.
func newLinkSite(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, `<html><body><a href="/b">b</a><a href="/missing">gone</a></body></html>`)
	})
	mux.HandleFunc("/b", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, `<html><body><p>leaf</p></body></html>`)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// linkUnit follows every anchor once.
func linkUnit(name, start string) crawler.Unit[struct{}] {
	return crawler.Unit[struct{}]{
		Name:            name,
		StartingAddress: start,
		Concurrency:     2,
		Revisit:         crawler.SkipVisited,
		Register: func(h *crawler.Handlers[struct{}]) {
			h.OnSelector("a", crawler.OnElement(
				func(vc *crawler.Context[struct{}], el *crawler.Element) (*url.URL, bool) {
					return vc.ParseHref(el)
				},
				func(ctx context.Context, _ *crawler.Context[struct{}], c *crawler.Crawler[struct{}], u *url.URL) {
					_ = c.Visit(ctx, u, model.News()) //nolint:errcheck // recorded by the crawler
				},
			))
		},
	}
}

// noRetry makes failing fetches give up at once.
func noRetry() crawler.RetryPolicy {
	p := crawler.DefaultRetryPolicy()
	p.InitialInterval = time.Millisecond
	p.MaxInterval = time.Millisecond
	p.MaxElapsedTime = 50 * time.Millisecond
	p.MaxRetries = 1
	return p
}
