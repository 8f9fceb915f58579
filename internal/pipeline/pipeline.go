// Package pipeline chains the bootstrap stages: prerequisites, skeleton,
// configuration files, then services.
//
// Each stage runs only if every earlier stage succeeded. The first failure
// stops the chain, the remaining stages are reported as skipped, and the
// stage's own typed error is returned unchanged so the CLI can map it to an
// exit code. Next-step instructions are attached to the Report only when
// every stage succeeded.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/mmr-tortoise/mcp-bootstrap/internal/pipeline"

// Status is the outcome of a stage or of the whole run.
type Status string

const (
	StatusOK      Status = "ok"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Stage is one fallible step of the bootstrap. Run returns the paths it
// created, relative to the project root.
type Stage struct {
	Name string
	Run  func(ctx context.Context) ([]string, error)
}

// StageResult records what one stage did.
type StageResult struct {
	Name     string        `json:"name"`
	Status   Status        `json:"status"`
	Duration time.Duration `json:"durationNs"`
	Created  []string      `json:"created,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// Report is the outcome of a pipeline run.
type Report struct {
	Status    Status        `json:"status"`
	Stages    []StageResult `json:"stages"`
	Created   []string      `json:"created"`
	NextSteps []string      `json:"nextSteps,omitempty"`
}

// Pipeline runs stages in order.
type Pipeline struct {
	stages    []Stage
	nextSteps []string
	logger    *slog.Logger
	tracer    trace.Tracer
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithNextSteps sets the instructions attached to a successful report.
func WithNextSteps(lines []string) Option {
	return func(p *Pipeline) { p.nextSteps = append([]string(nil), lines...) }
}

// New creates a Pipeline over stages.
func New(stages []Stage, opts ...Option) *Pipeline {
	p := &Pipeline{
		stages: stages,
		logger: slog.Default(),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes the stages. The Report is always returned, also on failure.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	ctx, span := p.tracer.Start(ctx, "bootstrap")
	defer span.End()

	report := &Report{Status: StatusOK, Created: []string{}}
	var failure error

	for _, stage := range p.stages {
		if failure != nil {
			report.Stages = append(report.Stages, StageResult{Name: stage.Name, Status: StatusSkipped})
			continue
		}
		result, err := p.runStage(ctx, stage)
		report.Stages = append(report.Stages, result)
		report.Created = append(report.Created, result.Created...)
		if err != nil {
			failure = err
			report.Status = StatusFailed
		}
	}

	span.SetAttributes(attribute.String("bootstrap.status", string(report.Status)))
	if failure != nil {
		span.SetStatus(codes.Error, failure.Error())
		return report, failure
	}
	span.SetStatus(codes.Ok, "")
	report.NextSteps = p.nextSteps
	p.logger.InfoContext(ctx, "bootstrap completed", "created", len(report.Created))
	return report, nil
}

func (p *Pipeline) runStage(ctx context.Context, stage Stage) (StageResult, error) {
	ctx, span := p.tracer.Start(ctx, "stage."+stage.Name)
	defer span.End()

	p.logger.InfoContext(ctx, "stage started", "stage", stage.Name)
	start := time.Now()

	var (
		created []string
		err     = ctx.Err()
	)
	if err == nil {
		created, err = stage.Run(ctx)
	}
	result := StageResult{
		Name:     stage.Name,
		Status:   StatusOK,
		Duration: time.Since(start),
		Created:  created,
	}
	span.SetAttributes(attribute.Int("stage.created", len(created)))

	if err != nil {
		result.Status = StatusFailed
		result.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.logger.ErrorContext(ctx, "stage failed", "stage", stage.Name, "error", err)
		return result, err
	}
	p.logger.InfoContext(ctx, "stage finished", "stage", stage.Name, "created", len(created),
		"elapsed", result.Duration.Round(time.Millisecond))
	return result, nil
}
