package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/harvester/internal/config"
	"github.com/nao1215/harvester/internal/model"
)

// fakeFactory builds single-step pipelines around fakeRunners.
func fakeFactory(delay time.Duration, failing map[string]bool, active, peak *atomic.Int32) Factory {
	return func(_ context.Context, name string) (*Pipeline, *model.CrawlReport, error) {
		rep := model.NewCrawlReport(name, "")
		if failing[name] {
			err := fmt.Errorf("unit %q: invalid selector", name)
			rep.Error = err
			return nil, rep, err
		}
		runner := &fakeRunner{name: name, startURL: "https://example.com/" + name, delay: delay}
		p := New(WithLogger(discardLogger()))
		p.AddStep(&mockStep{name: "track", doFunc: func(ctx context.Context, r *model.CrawlReport) error {
			n := active.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			defer active.Add(-1)
			return NewCrawlStep(runner, WithCrawlLogger(discardLogger())).Do(ctx, r)
		}})
		return p, rep, nil
	}
}

func TestBatchProcessorNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opts []BatchOption
		want int
	}{
		{name: "default concurrency", want: config.DefaultBatchSize},
		{name: "explicit concurrency", opts: []BatchOption{WithConcurrency(5)}, want: 5},
		{name: "non-positive keeps default", opts: []BatchOption{WithConcurrency(0)}, want: config.DefaultBatchSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			bp := NewBatchProcessor(nil, tt.opts...)
			if bp.concurrency != tt.want {
				t.Errorf("concurrency = %d, want %d", bp.concurrency, tt.want)
			}
			if bp.logger == nil {
				t.Error("expected default logger")
			}
		})
	}
}

func TestBatchProcessorProcessBatch(t *testing.T) {
	t.Parallel()

	t.Run("returns reports in input order", func(t *testing.T) {
		t.Parallel()

		var active, peak atomic.Int32
		bp := NewBatchProcessor(fakeFactory(10*time.Millisecond, nil, &active, &peak),
			WithConcurrency(3), WithBatchLogger(discardLogger()))

		names := []string{"a", "b", "c", "d", "e", "f", "g"}
		reports, err := bp.ProcessBatch(t.Context(), names)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(reports) != len(names) {
			t.Fatalf("got %d reports, want %d", len(reports), len(names))
		}
		for i, r := range reports {
			if r.Unit != names[i] {
				t.Errorf("report %d unit = %q, want %q", i, r.Unit, names[i])
			}
			if r.StartURL != "https://example.com/"+names[i] {
				t.Errorf("report %d start = %q", i, r.StartURL)
			}
		}
		if got := peak.Load(); got > 3 {
			t.Errorf("peak concurrent units = %d, want <= 3", got)
		}
	})

	t.Run("joins construction errors and keeps going", func(t *testing.T) {
		t.Parallel()

		var active, peak atomic.Int32
		failing := map[string]bool{"bad": true}
		bp := NewBatchProcessor(fakeFactory(0, failing, &active, &peak), WithBatchLogger(discardLogger()))

		reports, err := bp.ProcessBatch(t.Context(), []string{"good", "bad", "fine"})
		if err == nil {
			t.Fatal("expected construction error")
		}
		if reports[1].Error == nil {
			t.Error("failed unit report should carry the error")
		}
		if reports[0].Error != nil || reports[2].Error != nil {
			t.Errorf("other units should succeed: %v / %v", reports[0].Error, reports[2].Error)
		}
	})

	t.Run("cancellation", func(t *testing.T) {
		t.Parallel()

		var active, peak atomic.Int32
		bp := NewBatchProcessor(fakeFactory(time.Minute, nil, &active, &peak),
			WithConcurrency(1), WithBatchLogger(discardLogger()))

		ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
		defer cancel()

		start := time.Now()
		reports, err := bp.ProcessBatch(ctx, []string{"a", "b", "c"})
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("expected DeadlineExceeded, got %v", err)
		}
		if time.Since(start) > 5*time.Second {
			t.Error("batch did not stop promptly")
		}
		for i, r := range reports {
			if r == nil {
				t.Fatalf("report %d is nil", i)
			}
			if !errors.Is(r.Error, context.DeadlineExceeded) {
				t.Errorf("report %d error = %v", i, r.Error)
			}
		}
	})
}

func TestBatchProcessorProcessBatchWithCallback(t *testing.T) {
	t.Parallel()

	var active, peak atomic.Int32
	bp := NewBatchProcessor(fakeFactory(0, nil, &active, &peak),
		WithConcurrency(2), WithBatchLogger(discardLogger()))

	var mu sync.Mutex
	seen := make(map[int]string)
	names := []string{"a", "b", "c"}
	err := bp.ProcessBatchWithCallback(t.Context(), names, func(r *model.CrawlReport, i int) {
		mu.Lock()
		defer mu.Unlock()
		seen[i] = r.Unit
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(seen) != len(names) {
		t.Fatalf("callback called %d times, want %d", len(seen), len(names))
	}
	for i, name := range names {
		if seen[i] != name {
			t.Errorf("index %d = %q, want %q", i, seen[i], name)
		}
	}
}
