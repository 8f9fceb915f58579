// Package prereq verifies that the host tools the bootstrap relies on are
// installed before anything is created on disk.
//
// Tools are resolved on the execution path in a fixed order (container
// engine before compose frontend). The first missing tool stops the check
// with a model.MissingToolError; later tools are not looked at. When a
// DaemonPinger is configured, the Docker daemon is pinged once every tool
// has resolved, so an installed-but-stopped engine is reported before the
// skeleton is touched.
package prereq

import (
	"context"
	"log/slog"
	"os/exec"

	"github.com/mmr-tortoise/mcp-bootstrap/internal/model"
)

// DefaultRequirements returns the tools checked by default, in order.
// composeBinary names the compose frontend (normally "docker-compose").
func DefaultRequirements(composeBinary string) []model.ToolRequirement {
	if composeBinary == "" {
		composeBinary = "docker-compose"
	}
	return []model.ToolRequirement{
		{Name: "Docker", Binary: "docker"},
		{Name: "Docker Compose", Binary: composeBinary},
	}
}

// DaemonPinger is satisfied by *docker.Client.
type DaemonPinger interface {
	Ping(ctx context.Context) error
}

// Checker resolves ToolRequirements on PATH.
type Checker struct {
	requirements []model.ToolRequirement
	daemon       DaemonPinger
	logger       *slog.Logger

	// lookPath resolves a binary name. It is exec.LookPath in production
	// and a fake in tests.
	lookPath func(file string) (string, error)
}

// Option configures a Checker.
type Option func(*Checker)

// WithDaemonPinger enables the Docker daemon ping after tool resolution.
func WithDaemonPinger(p DaemonPinger) Option {
	return func(c *Checker) { c.daemon = p }
}

// WithLookPath replaces exec.LookPath.
func WithLookPath(fn func(string) (string, error)) Option {
	return func(c *Checker) { c.lookPath = fn }
}

// WithLogger sets the logger used for per-tool debug output.
func WithLogger(l *slog.Logger) Option {
	return func(c *Checker) { c.logger = l }
}

// NewChecker creates a Checker for the given requirements. The slice is
// copied; its order is the check order.
func NewChecker(requirements []model.ToolRequirement, opts ...Option) *Checker {
	c := &Checker{
		requirements: append([]model.ToolRequirement(nil), requirements...),
		lookPath:     exec.LookPath,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check resolves every requirement in order and returns a
// *model.MissingToolError for the first one that cannot be found.
func (c *Checker) Check(ctx context.Context) error {
	for _, req := range c.requirements {
		if err := ctx.Err(); err != nil {
			return err
		}
		resolved, err := c.lookPath(req.Binary)
		if err != nil {
			return &model.MissingToolError{Tool: req, Err: err}
		}
		c.logger.DebugContext(ctx, "tool resolved", "tool", req.String(), "path", resolved)
	}

	if c.daemon == nil {
		return nil
	}
	if err := c.daemon.Ping(ctx); err != nil {
		return err
	}
	c.logger.DebugContext(ctx, "docker daemon reachable")
	return nil
}
