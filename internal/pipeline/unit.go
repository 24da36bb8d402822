package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/harvester/internal/crawler"
	"github.com/nao1215/harvester/internal/database"
	"github.com/nao1215/harvester/internal/model"
	"github.com/nao1215/harvester/internal/report"
)

// Builder constructs the runner for a named unit. The options carry the
// logger, transport and journal chosen by the caller.
type Builder func(name string, opts ...crawler.Option) (crawler.Runner, error)

// Factory creates a fresh pipeline and an empty report for a unit.
// When construction fails the report is still returned, with Error set.
type Factory func(ctx context.Context, name string) (*Pipeline, *model.CrawlReport, error)

// UnitFactory wires a Builder to the journal and report writer.
type UnitFactory struct {
	build       Builder
	db          *database.CrawlDB
	writer      report.Writer
	crawlerOpts []crawler.Option
	logger      *slog.Logger
}

// UnitFactoryOption configures a UnitFactory.
type UnitFactoryOption func(*UnitFactory)

// WithJournalDB journals every visit and run to db.
func WithJournalDB(db *database.CrawlDB) UnitFactoryOption {
	return func(f *UnitFactory) {
		f.db = db
	}
}

// WithReportWriter renders each finished run with w. Writes from
// concurrent units are serialized.
func WithReportWriter(w report.Writer) UnitFactoryOption {
	return func(f *UnitFactory) {
		if w != nil {
			f.writer = report.NewLockedWriter(w)
		}
	}
}

// WithCrawlerOptions passes opts to every unit the factory builds.
func WithCrawlerOptions(opts ...crawler.Option) UnitFactoryOption {
	return func(f *UnitFactory) {
		f.crawlerOpts = append(f.crawlerOpts, opts...)
	}
}

// WithFactoryLogger sets the logger for pipelines and steps.
func WithFactoryLogger(logger *slog.Logger) UnitFactoryOption {
	return func(f *UnitFactory) {
		f.logger = logger
	}
}

// NewUnitFactory creates a UnitFactory around build.
func NewUnitFactory(build Builder, opts ...UnitFactoryOption) *UnitFactory {
	f := &UnitFactory{build: build}

	for _, opt := range opts {
		opt(f)
	}

	if f.logger == nil {
		f.logger = slog.Default()
	}

	return f
}

// Build implements Factory.
//
// With a journal, the run row is opened before the unit is constructed so
// every visit can be recorded against it. A unit that fails to build is
// saved as a failed run.
func (f *UnitFactory) Build(ctx context.Context, name string) (*Pipeline, *model.CrawlReport, error) {
	rep := model.NewCrawlReport(name, "")

	opts := make([]crawler.Option, 0, len(f.crawlerOpts)+1)
	opts = append(opts, f.crawlerOpts...)
	if f.db != nil {
		journal, err := f.db.BeginRun(ctx, rep)
		if err != nil {
			rep.Error = err
			rep.ErrorMessage = err.Error()
			return nil, rep, err
		}
		opts = append(opts, crawler.WithJournal(journal))
	}

	runner, err := f.build(name, opts...)
	if err != nil {
		rep.Error = err
		rep.ErrorMessage = err.Error()
		rep.FinishedAt = time.Now()
		if f.db != nil {
			if saveErr := f.db.SaveRun(context.WithoutCancel(ctx), rep); saveErr != nil {
				f.logger.Warn("failed to save run", "unit", name, "error", saveErr)
			}
		}
		return nil, rep, err
	}
	rep.StartURL = runner.StartURL()

	p := New(WithLogger(f.logger), WithContinueOnError(true))
	p.AddStep(NewCrawlStep(runner, WithCrawlLogger(f.logger)))
	if f.db != nil {
		p.Finally(NewJournalStep(f.db, f.logger))
	}
	if f.writer != nil {
		p.Finally(NewReportStep(f.writer))
	}
	return p, rep, nil
}
