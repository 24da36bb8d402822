package crawler

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/harvester/internal/model"
)

// syncBuffer is a bytes.Buffer safe for concurrent log writes.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func captureLogger() (*slog.Logger, *syncBuffer) {
	buf := &syncBuffer{}
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})), buf
}

// fastRetry retries every millisecond for at most maxElapsed.
func fastRetry(maxElapsed time.Duration) RetryPolicy {
	return RetryPolicy{
		InitialInterval: time.Millisecond,
		Multiplier:      1,
		MaxInterval:     time.Millisecond,
		MaxElapsedTime:  maxElapsed,
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func htmlResponse(req *http.Request, status int, body string) *http.Response {
	return &http.Response{
		StatusCode:    status,
		Header:        http.Header{"Content-Type": {"text/html; charset=utf-8"}},
		Body:          io.NopCloser(strings.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}
}

// site serves fixed HTML pages and counts hits per path.
type site struct {
	*httptest.Server

	mu   sync.Mutex
	hits map[string]int
}

func newSite(t *testing.T, pages map[string]string) *site {
	t.Helper()
	return newWrappedSite(t, pages, nil)
}

// newWrappedSite is newSite with middleware installed before the server
// starts.
func newWrappedSite(t *testing.T, pages map[string]string, wrap func(http.Handler) http.Handler) *site {
	t.Helper()

	s := &site{hits: make(map[string]int)}
	var handler http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.hits[r.URL.Path]++
		s.mu.Unlock()

		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, body) //nolint:errcheck // test server
	})
	if wrap != nil {
		handler = wrap(handler)
	}
	s.Server = httptest.NewServer(handler)
	t.Cleanup(s.Close)
	return s
}

func (s *site) hitsFor(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

func (s *site) address(t *testing.T, path string) *url.URL {
	t.Helper()
	return mustParse(t, s.URL+path)
}

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("url.Parse(%q): %v", raw, err)
	}
	return u
}

func newTestCrawler[S any](t *testing.T, concurrency int, h *Handlers[S], state S, client *http.Client, opts ...Option) *Crawler[S] {
	t.Helper()

	base := []Option{WithLogger(discardLogger()), WithRetryPolicy(fastRetry(time.Second))}
	c, err := NewCrawler(concurrency, h, state, client, append(base, opts...)...)
	if err != nil {
		t.Fatalf("NewCrawler: %v", err)
	}
	return c
}

func waitQuiet[S any](t *testing.T, c *Crawler[S]) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}

// followLinks is a selector handler that visits every href as pt.
func followLinks[S any](pt model.PageType) ElementHandler[S] {
	return OnElement(
		func(vc *Context[S], el *Element) (*url.URL, bool) {
			return vc.ParseHref(el)
		},
		func(ctx context.Context, _ *Context[S], c *Crawler[S], u *url.URL) {
			_ = c.Visit(ctx, u, pt) //nolint:errcheck // recorded by the crawler
		},
	)
}

// memoryJournal keeps visit records in memory.
type memoryJournal struct {
	mu      sync.Mutex
	records []model.VisitRecord
}

func (j *memoryJournal) RecordVisit(_ context.Context, rec model.VisitRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.records = append(j.records, rec)
	return nil
}

func (j *memoryJournal) outcomes() map[model.Outcome]int {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make(map[model.Outcome]int)
	for _, r := range j.records {
		out[r.Outcome]++
	}
	return out
}
