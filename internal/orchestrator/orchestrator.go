// Package orchestrator drives the container platform through the fixed
// service plan: build images, start the dependency services, wait for them
// to be ready, then run the one-shot initialization command in a disposable
// application container.
//
// Steps run strictly in sequence. A step is attempted only if every prior
// step succeeded, and nothing is retried; re-running the whole bootstrap is
// the recovery path.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mmr-tortoise/mcp-bootstrap/internal/docker"
	"github.com/mmr-tortoise/mcp-bootstrap/internal/model"
	"github.com/mmr-tortoise/mcp-bootstrap/internal/readiness"
)

const tracerName = "github.com/mmr-tortoise/mcp-bootstrap/internal/orchestrator"

// Composer is satisfied by *docker.Compose.
type Composer interface {
	Build(ctx context.Context) error
	Up(ctx context.Context, services ...string) error
	Run(ctx context.Context, service string, command []string) error
}

// Plan names the compose services and the initialization command.
type Plan struct {
	// ComposeFile is checked for the planned services before the build.
	// When empty, the file compose itself would pick is looked up in
	// ProjectDir; with both empty the check is skipped.
	ComposeFile string
	ProjectDir  string

	// Dependencies are the stateful services started before the app.
	Dependencies []string

	// App is the application service the one-shot runs in.
	App string

	// InitCommand is run with no further arguments inside App.
	InitCommand []string
}

// Steps returns the ordered service steps of the plan.
func (p Plan) Steps() []model.ServiceStep {
	return []model.ServiceStep{
		{Kind: model.StepBuild},
		{Kind: model.StepStartDependencies, Services: append([]string(nil), p.Dependencies...)},
		{Kind: model.StepAwaitReadiness, Services: append([]string(nil), p.Dependencies...)},
		{Kind: model.StepRunOneShot, Services: []string{p.App}, Command: append([]string(nil), p.InitCommand...)},
	}
}

// Validate checks the plan is complete.
func (p Plan) Validate() error {
	if len(p.Dependencies) == 0 {
		return fmt.Errorf("plan has no dependency services")
	}
	if p.App == "" {
		return fmt.Errorf("plan has no application service")
	}
	if len(p.InitCommand) == 0 {
		return fmt.Errorf("plan has no initialization command")
	}
	return nil
}

// Orchestrator executes a Plan.
type Orchestrator struct {
	compose Composer
	waiter  readiness.Waiter
	plan    Plan
	logger  *slog.Logger
	tracer  trace.Tracer
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// New creates an Orchestrator.
func New(compose Composer, waiter readiness.Waiter, plan Plan, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		compose: compose,
		waiter:  waiter,
		plan:    plan,
		logger:  slog.Default(),
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes the plan's steps in order and stops at the first failure.
// Tool failures are *model.OrchestrationStepError; readiness expiry is
// *model.TimeoutError.
func (o *Orchestrator) Run(ctx context.Context) error {
	if err := o.plan.Validate(); err != nil {
		return &model.OrchestrationStepError{Step: model.StepBuild, ExitStatus: -1, Err: err}
	}
	for _, step := range o.plan.Steps() {
		if err := o.runStep(ctx, step); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) runStep(ctx context.Context, step model.ServiceStep) (err error) {
	ctx, span := o.tracer.Start(ctx, "service."+step.Kind.String(),
		trace.WithAttributes(
			attribute.String("step.kind", step.Kind.String()),
			attribute.StringSlice("step.services", step.Services),
		))
	defer span.End()

	start := time.Now()
	o.logger.InfoContext(ctx, "service step started", "step", step.String())
	defer func() {
		elapsed := time.Since(start).Round(time.Millisecond)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			o.logger.ErrorContext(ctx, "service step failed", "step", step.Kind.String(), "elapsed", elapsed, "error", err)
			return
		}
		span.SetStatus(codes.Ok, "")
		o.logger.InfoContext(ctx, "service step finished", "step", step.Kind.String(), "elapsed", elapsed)
	}()

	if err := ctx.Err(); err != nil {
		return err
	}

	switch step.Kind {
	case model.StepBuild:
		if err := o.checkComposeFile(); err != nil {
			return err
		}
		return o.compose.Build(ctx)
	case model.StepStartDependencies:
		return o.compose.Up(ctx, step.Services...)
	case model.StepAwaitReadiness:
		return o.waiter.Await(ctx)
	case model.StepRunOneShot:
		return o.compose.Run(ctx, step.Services[0], step.Command)
	default:
		return fmt.Errorf("unknown service step %q", step.Kind)
	}
}

// checkComposeFile fails the build step without touching the container
// platform when the compose file is missing or lacks a planned service.
func (o *Orchestrator) checkComposeFile() error {
	if o.plan.ComposeFile == "" && o.plan.ProjectDir == "" {
		return nil
	}
	if err := o.loadAndCheckComposeFile(); err != nil {
		return &model.OrchestrationStepError{Step: model.StepBuild, ExitStatus: -1, Err: err}
	}
	return nil
}

func (o *Orchestrator) loadAndCheckComposeFile() error {
	path := o.plan.ComposeFile
	if path == "" {
		found, err := docker.FindComposeFile(o.plan.ProjectDir)
		if err != nil {
			return err
		}
		path = found
	}
	f, err := docker.LoadComposeFile(path)
	if err != nil {
		return err
	}
	return f.RequireServices(append(append([]string(nil), o.plan.Dependencies...), o.plan.App)...)
}
