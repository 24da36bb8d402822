package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/harvester/internal/config"
	"github.com/nao1215/harvester/internal/model"
)

// BatchProcessor runs many crawl units concurrently.
//
// Design decision: This is separate from Pipeline so Pipeline stays focused
// on one unit run. errgroup.SetLimit bounds how many units crawl at once;
// each unit still bounds its own fetches with its permit pool.
type BatchProcessor struct {
	factory     Factory
	concurrency int
	logger      *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets how many units run at once.
// Non-positive values keep the default, config.DefaultBatchSize.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a BatchProcessor. factory is called once per
// unit so no state leaks between runs.
func NewBatchProcessor(factory Factory, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		factory:     factory,
		concurrency: config.DefaultBatchSize,
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// ProcessBatch runs the named units and returns their reports in the order
// of names. Every entry is non-nil: units that never started carry the
// reason in Error.
//
// The error joins every unit construction failure and ctx.Err() when the
// batch was cancelled. Crawl failures of a built unit are only in its
// report.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, names []string) ([]*model.CrawlReport, error) {
	results := make([]*model.CrawlReport, len(names))
	var mu sync.Mutex

	err := bp.ProcessBatchWithCallback(ctx, names, func(r *model.CrawlReport, i int) {
		mu.Lock()
		results[i] = r
		mu.Unlock()
	})

	for i, r := range results {
		if r == nil {
			results[i] = cancelledReport(ctx, names[i])
		}
	}
	return results, err
}

// ProcessBatchWithCallback runs the named units and calls callback with
// each report as soon as its unit finishes. callback is called from the
// unit's goroutine and must be safe for concurrent use.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	names []string,
	callback func(report *model.CrawlReport, index int),
) error {
	bp.logger.Info("starting batch",
		"units", len(names),
		"concurrency", bp.concurrency,
	)
	startTime := time.Now()

	var (
		mu        sync.Mutex
		buildErrs []error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, name := range names {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				callback(cancelledReport(gctx, name), i)
				return nil
			}

			bp.logger.Info("running unit",
				"unit", name,
				"index", i+1,
				"total", len(names),
			)

			p, rep, err := bp.factory(gctx, name)
			if err != nil {
				bp.logger.Error("unit construction failed", "unit", name, "error", err)
				mu.Lock()
				buildErrs = append(buildErrs, err)
				mu.Unlock()
				if rep == nil {
					rep = model.NewCrawlReport(name, "")
					rep.Error = err
					rep.ErrorMessage = err.Error()
				}
				callback(rep, i)
				return nil
			}

			if err := p.Execute(gctx, rep); err != nil {
				bp.logger.Warn("unit failed", "unit", name, "error", err)
			} else if rep.Error != nil {
				bp.logger.Warn("unit finished with error", "unit", name, "error", rep.Error)
			} else {
				bp.logger.Info("unit completed", "unit", name)
			}

			callback(rep, i)
			return nil
		})
	}

	_ = g.Wait() //nolint:errcheck // goroutines never return errors; failures are in the reports

	bp.logger.Info("batch complete",
		"units", len(names),
		"elapsed", time.Since(startTime),
	)

	return errors.Join(append(buildErrs, ctx.Err())...)
}

func cancelledReport(ctx context.Context, name string) *model.CrawlReport {
	r := model.NewCrawlReport(name, "")
	err := ctx.Err()
	if err == nil {
		err = context.Canceled
	}
	r.Error = err
	r.ErrorMessage = err.Error()
	return r
}
