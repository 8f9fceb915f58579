package docker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/mmr-tortoise/mcp-bootstrap/internal/model"
)

// maxCapturedOutput bounds how much child output is kept for error reports.
// Image builds can print megabytes; only the tail is useful.
const maxCapturedOutput = 64 << 10

// Invocation describes one child process.
type Invocation struct {
	// Dir is the working directory. Compose resolves relative paths in the
	// compose file against it, so it must be the project root.
	Dir string

	// Args is the full argv; Args[0] is the program.
	Args []string

	// Env holds extra KEY=VALUE pairs appended to the inherited environment.
	Env []string
}

// String renders the command line for logs.
func (inv Invocation) String() string {
	return strings.Join(inv.Args, " ")
}

// Runner executes an Invocation and returns the captured output. A non-nil
// error that implements ExitCode() int (as *exec.ExitError does) carries the
// child's exit status.
type Runner interface {
	Run(ctx context.Context, inv Invocation) ([]byte, error)
}

// ExecRunner runs invocations with os/exec. Child stdout and stderr are
// streamed to Stdout and Stderr so the operator sees build progress live,
// and the tail of both is captured for error reporting.
type ExecRunner struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, inv Invocation) ([]byte, error) {
	if len(inv.Args) == 0 {
		return nil, errors.New("empty command")
	}
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cmd := exec.CommandContext(ctx, inv.Args[0], inv.Args[1:]...)
	cmd.Dir = inv.Dir
	cmd.Env = append(os.Environ(), inv.Env...)

	captured := &tailBuffer{max: maxCapturedOutput}
	cmd.Stdout = io.MultiWriter(orDiscard(r.Stdout), captured)
	cmd.Stderr = io.MultiWriter(orDiscard(r.Stderr), captured)

	logger.Debug("running command", "cmd", inv.String(), "dir", inv.Dir)
	err := cmd.Run()
	if err != nil {
		logger.Debug("command failed", "cmd", inv.String(), "error", err)
	}
	return captured.Bytes(), err
}

func orDiscard(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}

// tailBuffer keeps the last max bytes written to it. Stdout and stderr
// copiers write concurrently, hence the mutex.
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
	max int
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.max; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
	}
	return len(p), nil
}

func (b *tailBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.buf...)
}

// Compose drives the compose tool for one project directory.
type Compose struct {
	runner  Runner
	command []string
	dir     string
	project string
	files   []string
}

// ComposeOption configures a Compose.
type ComposeOption func(*Compose)

// WithProjectName passes "-p name". Without it compose derives the name
// itself.
func WithProjectName(name string) ComposeOption {
	return func(c *Compose) { c.project = name }
}

// WithComposeFiles passes one "-f file" per file, merged in order.
func WithComposeFiles(files ...string) ComposeOption {
	return func(c *Compose) { c.files = append(c.files, files...) }
}

// NewCompose creates a Compose that invokes command (e.g. ["docker-compose"]
// or ["docker", "compose"]) in dir.
func NewCompose(runner Runner, command []string, dir string, opts ...ComposeOption) *Compose {
	c := &Compose{
		runner:  runner,
		command: append([]string(nil), command...),
		dir:     dir,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Argv returns the full command line for the given compose subcommand.
func (c *Compose) Argv(args ...string) []string {
	argv := make([]string, 0, len(c.command)+len(c.files)*2+2+len(args))
	argv = append(argv, c.command...)
	for _, f := range c.files {
		argv = append(argv, "-f", f)
	}
	if c.project != "" {
		argv = append(argv, "-p", c.project)
	}
	return append(argv, args...)
}

// Build builds every image declared in the compose file.
func (c *Compose) Build(ctx context.Context) error {
	return c.run(ctx, model.StepBuild, "build")
}

// Up starts services in detached mode. Only the named services (and their
// own depends_on) are started.
func (c *Compose) Up(ctx context.Context, services ...string) error {
	if len(services) == 0 {
		return fmt.Errorf("compose up: no services named")
	}
	return c.run(ctx, model.StepStartDependencies, append([]string{"up", "-d"}, services...)...)
}

// Run executes command in a disposable container of service that is
// removed when the command exits.
func (c *Compose) Run(ctx context.Context, service string, command []string) error {
	if service == "" || len(command) == 0 {
		return fmt.Errorf("compose run: service and command are required")
	}
	args := append([]string{"run", "--rm", service}, command...)
	return c.run(ctx, model.StepRunOneShot, args...)
}

// Exec runs command in the running container of service without a TTY and
// returns its output. It is used for readiness checks, not service steps.
func (c *Compose) Exec(ctx context.Context, service string, command []string) ([]byte, error) {
	if service == "" || len(command) == 0 {
		return nil, fmt.Errorf("compose exec: service and command are required")
	}
	args := append([]string{"exec", "-T", service}, command...)
	out, err := c.runner.Run(ctx, Invocation{Dir: c.dir, Args: c.Argv(args...)})
	if err != nil {
		if tail := strings.TrimSpace(string(out)); tail != "" {
			return out, fmt.Errorf("%s: %w: %s", strings.Join(command, " "), err, tail)
		}
		return out, fmt.Errorf("%s: %w", strings.Join(command, " "), err)
	}
	return out, nil
}

// run executes one compose subcommand. Any failure is returned as a
// model.OrchestrationStepError carrying the child's exit status, or -1 when
// the process never produced one (binary missing, context cancelled before
// start).
func (c *Compose) run(ctx context.Context, step model.StepKind, args ...string) error {
	inv := Invocation{Dir: c.dir, Args: c.Argv(args...)}
	out, err := c.runner.Run(ctx, inv)
	if err == nil {
		return nil
	}

	status := -1
	var exitErr interface{ ExitCode() int }
	if errors.As(err, &exitErr) {
		status = exitErr.ExitCode()
	}
	return &model.OrchestrationStepError{
		Step:       step,
		Command:    inv.Args,
		ExitStatus: status,
		Output:     strings.TrimSpace(string(out)),
		Err:        err,
	}
}
