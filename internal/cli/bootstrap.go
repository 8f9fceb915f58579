package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/mmr-tortoise/mcp-bootstrap/internal/config"
	"github.com/mmr-tortoise/mcp-bootstrap/internal/docker"
	"github.com/mmr-tortoise/mcp-bootstrap/internal/model"
	"github.com/mmr-tortoise/mcp-bootstrap/internal/orchestrator"
	"github.com/mmr-tortoise/mcp-bootstrap/internal/pipeline"
	"github.com/mmr-tortoise/mcp-bootstrap/internal/prereq"
	"github.com/mmr-tortoise/mcp-bootstrap/internal/project"
	"github.com/mmr-tortoise/mcp-bootstrap/internal/readiness"
	"github.com/mmr-tortoise/mcp-bootstrap/internal/scaffold"
	"github.com/mmr-tortoise/mcp-bootstrap/internal/skeleton"
	"github.com/mmr-tortoise/mcp-bootstrap/internal/telemetry"
)

const serviceName = "mcp-bootstrap"

// shutdownTimeout bounds the span flush at exit.
const shutdownTimeout = 5 * time.Second

// runBootstrap resolves the project, loads the configuration, and runs the
// four bootstrap stages. The stage error is returned unchanged.
func runBootstrap(ctx context.Context, env *environment, opts *options) error {
	root, err := project.NewResolver().Root(ctx, opts.dir)
	if err != nil {
		return err
	}
	cfg, err := config.Load(root, opts.configPath)
	if err != nil {
		return err
	}

	logger := telemetry.NewLogger(env.stderr, cfg.LogFormat, opts.verbose)
	logger.DebugContext(ctx, "project resolved", "root", root)

	shutdown, err := telemetry.Setup(ctx, serviceName, Version, cfg.OTelEndpoint)
	if err != nil {
		return model.WrapCLIError(model.ExitConfigError, "failed to set up tracing", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdown(flushCtx); err != nil {
			logger.Warn("failed to flush traces", "error", err)
		}
	}()

	engine := env.newEngine(cfg.DockerHost)
	defer engine.Close()

	// Compose output goes to stderr with --json so stdout carries only the
	// report.
	toolOut := env.stdout
	if opts.jsonOutput {
		toolOut = env.stderr
	}
	runner := env.runner
	if runner == nil {
		runner = &docker.ExecRunner{Stdout: toolOut, Stderr: env.stderr, Logger: logger}
	}

	composeFile := loadComposeFile(cfg, root, logger)
	composeProject := cfg.ComposeProject(root, composeFile)
	var composeOpts []docker.ComposeOption
	if cfg.ComposeFile != "" {
		composeOpts = append(composeOpts, docker.WithComposeFiles(cfg.ComposeFile))
	}
	if cfg.ProjectName != "" {
		composeOpts = append(composeOpts, docker.WithProjectName(cfg.ProjectName))
	}
	compose := docker.NewCompose(runner, cfg.ComposeCommand, root, composeOpts...)

	// Readiness checks run every interval; their output is not streamed.
	probeRunner := env.runner
	if probeRunner == nil {
		probeRunner = &docker.ExecRunner{Logger: logger}
	}
	probeCompose := docker.NewCompose(probeRunner, cfg.ComposeCommand, root, composeOpts...)

	checkerOpts := []prereq.Option{prereq.WithLogger(logger)}
	if env.lookPath != nil {
		checkerOpts = append(checkerOpts, prereq.WithLookPath(env.lookPath))
	}
	if cfg.CheckDaemon {
		checkerOpts = append(checkerOpts, prereq.WithDaemonPinger(engine))
	}

	plan := orchestrator.Plan{
		ComposeFile:  cfg.ComposeFilePath(root),
		ProjectDir:   root,
		Dependencies: cfg.Services.Dependencies,
		App:          cfg.Services.App,
		InitCommand:  cfg.Services.InitCommand,
	}
	waiter := buildWaiter(cfg, waiterDeps{
		project: composeProject,
		file:    composeFile,
		lister:  engine,
		execer:  probeCompose,
	}, logger)

	stages := pipeline.BootstrapStages(pipeline.Components{
		Prerequisites: prereq.NewChecker(prereq.DefaultRequirements(cfg.ComposeCommand[0]), checkerOpts...),
		Skeleton:      skeleton.NewBuilder(root),
		Layout:        skeleton.DefaultLayout(),
		Config:        scaffold.NewMaterializer(root, logger),
		Templates:     scaffold.DefaultTemplates(),
		Services:      orchestrator.New(compose, waiter, plan, orchestrator.WithLogger(logger)),
	})
	p := pipeline.New(stages,
		pipeline.WithLogger(logger),
		pipeline.WithNextSteps(pipeline.NextSteps(strings.Join(compose.Argv(), " "))),
	)

	logger.InfoContext(ctx, "bootstrapping development environment", "root", root, "project", composeProject)
	report, runErr := p.Run(ctx)

	if opts.jsonOutput {
		if err := writeJSON(env.stdout, report); err != nil {
			return err
		}
		return runErr
	}
	if runErr != nil {
		return runErr
	}
	printSummary(env.stdout, report)
	return nil
}

// loadComposeFile parses the compose file the services stage will use. It
// returns nil when there is none; the build step reports that failure.
func loadComposeFile(cfg *config.Config, root string, logger *slog.Logger) *docker.ComposeFile {
	path := cfg.ComposeFilePath(root)
	if path == "" {
		found, err := docker.FindComposeFile(root)
		if err != nil {
			logger.Debug("no compose file found", "error", err)
			return nil
		}
		path = found
	}
	f, err := docker.LoadComposeFile(path)
	if err != nil {
		logger.Debug("compose file not usable", "error", err)
		return nil
	}
	return f
}

// waiterDeps are the collaborators of the poll-mode probes.
type waiterDeps struct {
	project string
	file    *docker.ComposeFile
	lister  readiness.ContainerLister
	execer  readiness.Execer
}

// buildWaiter returns the readiness strategy selected by the configuration.
//
// In poll mode each dependency gets a container state probe. A container
// without a healthcheck is "running" long before its server accepts
// connections, so such dependencies also get an in-container check when
// their image is known. Dependencies that have neither are covered by the
// grace period before polling starts. Every probe is guarded by its own
// circuit breaker.
func buildWaiter(cfg *config.Config, deps waiterDeps, logger *slog.Logger) readiness.Waiter {
	r := cfg.Readiness
	grace := &readiness.FixedWait{Grace: r.Grace.Std(), Logger: logger}
	if r.Mode == readiness.ModeSleep {
		return grace
	}

	var (
		probes    []readiness.Probe
		unchecked []string
	)
	if r.ContainerChecks {
		for _, svc := range cfg.Services.Dependencies {
			probes = append(probes, &readiness.ContainerProbe{Lister: deps.lister, Project: deps.project, Service: svc})
			if deps.file != nil && deps.file.HasHealthcheck(svc) {
				continue
			}
			var image string
			if deps.file != nil {
				image = deps.file.Services[svc].Image
			}
			if check, ok := readiness.ExecCheckFor(svc, image); ok {
				probes = append(probes, &readiness.ExecProbe{Execer: deps.execer, Service: svc, Check: check})
				continue
			}
			unchecked = append(unchecked, svc)
		}
	}
	if r.PostgresDSN != "" {
		probes = append(probes, readiness.NewPostgresProbe(r.PostgresDSN))
	}
	if r.RedisURL != "" {
		probes = append(probes, readiness.NewRedisProbe(r.RedisURL))
	}
	for i, probe := range probes {
		probes[i] = readiness.Guard(probe, readiness.NewCircuitBreaker(probe.Name(), r.BreakerWindow()))
	}

	poller := &readiness.Poller{
		Probes:         probes,
		Timeout:        r.Timeout.Std(),
		Interval:       r.Interval.Std(),
		AttemptTimeout: r.AttemptTimeout.Std(),
		What:           strings.Join(cfg.Services.Dependencies, ", "),
		Logger:         logger,
	}
	if len(unchecked) == 0 {
		return poller
	}
	if logger != nil {
		logger.Warn("no healthcheck or known readiness command, waiting the grace period first", "services", unchecked)
	}
	return readiness.Sequence{grace, poller}
}

func writeJSON(w io.Writer, report *pipeline.Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}

// printSummary writes the human-readable success message.
func printSummary(w io.Writer, report *pipeline.Report) {
	switch n := len(report.Created); n {
	case 0:
		fmt.Fprintln(w, "Development environment is ready (nothing new was created).")
	case 1:
		fmt.Fprintln(w, "Development environment is ready (1 path created).")
	default:
		fmt.Fprintf(w, "Development environment is ready (%d paths created).\n", n)
	}
	if len(report.NextSteps) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Next steps:")
	for _, line := range report.NextSteps {
		fmt.Fprintf(w, "  %s\n", line)
	}
}
