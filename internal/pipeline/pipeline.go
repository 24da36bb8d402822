package pipeline

import (
	"context"
	"log/slog"

	"github.com/nao1215/harvester/internal/model"
)

// Step is one stage of a unit run.
//
// Design decision: Steps are an interface rather than function types so
// they can carry their dependencies and report a Name for logging.
type Step interface {
	// Do executes the step. Non-critical problems are recorded in the
	// report and Do returns nil.
	Do(ctx context.Context, report *model.CrawlReport) error

	// Name returns the step's name for logging and PerformedSteps.
	Name() string
}

// Pipeline executes steps in order.
type Pipeline struct {
	steps  []Step
	final  []Step
	logger *slog.Logger

	// continueOnError keeps executing after a step fails.
	continueOnError bool
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError configures the pipeline to run later steps after a
// step fails. The error is still recorded in the report.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates an empty Pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
		final: make([]Step, 0),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// AddStep appends a step.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Finally appends steps that run after the regular steps no matter how
// they ended, including cancellation. They receive a context that is not
// cancelled with ctx.
func (p *Pipeline) Finally(steps ...Step) {
	p.final = append(p.final, steps...)
}

// Execute runs the regular steps, then the final steps.
//
// Cancellation is checked before each regular step. On cancellation the
// remaining regular steps are skipped, ctx.Err() is recorded in the report
// unless an earlier error is already there, and the final steps still run.
//
// Returns the first step error, or ctx.Err() on cancellation.
func (p *Pipeline) Execute(ctx context.Context, report *model.CrawlReport) error {
	firstErr := p.run(ctx, report, p.steps, true)

	finalCtx := context.WithoutCancel(ctx)
	if err := p.run(finalCtx, report, p.final, false); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func (p *Pipeline) run(ctx context.Context, report *model.CrawlReport, steps []Step, checkCancel bool) error {
	var firstErr error
	for _, step := range steps {
		if checkCancel {
			if err := ctx.Err(); err != nil {
				p.logger.Warn("pipeline cancelled",
					"step", step.Name(),
					"unit", report.Unit,
					"reason", err,
				)
				if report.Error == nil {
					report.Error = err
					report.ErrorMessage = err.Error()
				}
				return err
			}
		}

		p.logger.Debug("executing step",
			"step", step.Name(),
			"unit", report.Unit,
		)

		if err := step.Do(ctx, report); err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"unit", report.Unit,
				"error", err,
			)
			if report.Error == nil {
				report.Error = err
				report.ErrorMessage = err.Error()
			}
			if firstErr == nil {
				firstErr = err
			}
			if !p.continueOnError && checkCancel {
				return err
			}
			continue
		}

		report.PerformedSteps = append(report.PerformedSteps, step.Name())
	}
	return firstErr
}

// StepCount returns the number of regular and final steps.
func (p *Pipeline) StepCount() int {
	return len(p.steps) + len(p.final)
}

// StepNames returns step names in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, 0, p.StepCount())
	for _, step := range p.steps {
		names = append(names, step.Name())
	}
	for _, step := range p.final {
		names = append(names, step.Name())
	}
	return names
}
