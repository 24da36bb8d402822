package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nao1215/harvester/internal/crawler"
	"github.com/nao1215/harvester/internal/database"
	"github.com/nao1215/harvester/internal/model"
	"github.com/nao1215/harvester/internal/report"
)

// CrawlStep starts a unit and waits for it to quiesce.
type CrawlStep struct {
	runner crawler.Runner
	logger *slog.Logger
}

// CrawlStepOption configures a CrawlStep.
type CrawlStepOption func(*CrawlStep)

// WithCrawlLogger sets a custom logger for the crawl step.
func WithCrawlLogger(logger *slog.Logger) CrawlStepOption {
	return func(s *CrawlStep) {
		s.logger = logger
	}
}

// NewCrawlStep creates a crawl step for runner.
func NewCrawlStep(runner crawler.Runner, opts ...CrawlStepOption) *CrawlStep {
	s := &CrawlStep{
		runner: runner,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *CrawlStep) Name() string {
	return "crawl"
}

// Do runs the unit. A failed seed or a cancelled crawl is recorded in the
// report, not returned: the run happened and later steps should see it.
func (s *CrawlStep) Do(ctx context.Context, rep *model.CrawlReport) error {
	err := s.runner.Start(ctx)

	result := s.runner.Report()
	rep.Unit = result.Unit
	rep.StartURL = result.StartURL
	rep.StartedAt = result.StartedAt
	rep.FinishedAt = result.FinishedAt
	rep.Stats = result.Stats
	rep.Failures = result.Failures

	if err != nil {
		rep.Error = err
		rep.ErrorMessage = err.Error()
		s.logger.Warn("crawl completed with error", "unit", rep.Unit, "error", err)
		return nil
	}

	s.logger.Info("crawl completed",
		"unit", rep.Unit,
		"visited", rep.Stats.Visited,
		"failed", rep.Stats.Failed,
		"elapsed", rep.Elapsed(),
	)
	return nil
}

// JournalStep stores the run summary in the journal.
type JournalStep struct {
	db     *database.CrawlDB
	logger *slog.Logger
}

// NewJournalStep creates a journal step.
func NewJournalStep(db *database.CrawlDB, logger *slog.Logger) *JournalStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &JournalStep{db: db, logger: logger}
}

// Name returns the step name.
func (s *JournalStep) Name() string {
	return "journal"
}

// Do saves the run.
func (s *JournalStep) Do(ctx context.Context, rep *model.CrawlReport) error {
	if err := s.db.SaveRun(ctx, rep); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	s.logger.Debug("run saved", "unit", rep.Unit, "run_id", rep.RunID)
	return nil
}

// ReportStep renders the report with a Writer.
type ReportStep struct {
	writer report.Writer
}

// NewReportStep creates a report step.
func NewReportStep(w report.Writer) *ReportStep {
	return &ReportStep{writer: w}
}

// Name returns the step name.
func (s *ReportStep) Name() string {
	return "report"
}

// Do writes the report.
func (s *ReportStep) Do(_ context.Context, rep *model.CrawlReport) error {
	if _, err := s.writer.Write(rep); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
