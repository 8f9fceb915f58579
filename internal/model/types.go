package model

import (
	"fmt"
	"path"
	"strings"
)

// ToolRequirement describes an external tool that must be resolvable on the
// host's execution path before any setup is attempted.
type ToolRequirement struct {
	// Name is the human-readable tool name used in remediation messages
	// (e.g., "Docker", "Docker Compose").
	Name string `json:"name"`

	// Binary is the detection command looked up on PATH (e.g., "docker").
	Binary string `json:"binary"`
}

// String returns the tool name, falling back to the binary when unnamed.
func (t ToolRequirement) String() string {
	if t.Name != "" {
		return t.Name
	}
	return t.Binary
}

// DirectorySpec is the ordered list of slash-separated relative directory
// paths that must exist under the project root. Creating a directory that
// already exists is a no-op.
type DirectorySpec []string

// PackageMarker is a relative file path whose presence declares a directory
// as an importable package (an empty __init__.py). It is created empty when
// absent and never rewritten when present.
type PackageMarker string

// TemplatePolicy controls when a ConfigTemplate is written.
type TemplatePolicy string

const (
	// CreateIfAbsent writes the template only when nothing exists at the
	// target path. An existing file is the expected steady state and is
	// never truncated or modified.
	CreateIfAbsent TemplatePolicy = "create-if-absent"
)

// String returns the string representation of TemplatePolicy.
func (p TemplatePolicy) String() string {
	return string(p)
}

// ConfigTemplate is a default configuration artifact: a relative target path
// and the literal content written there when the file does not exist yet.
type ConfigTemplate struct {
	// Name identifies the template in logs and reports (e.g., "env").
	Name string `json:"name"`

	// TargetPath is the slash-separated path relative to the project root.
	TargetPath string `json:"targetPath"`

	// Content is written verbatim. It is a default, not a migration.
	Content []byte `json:"-"`

	// Policy is the write policy. Only CreateIfAbsent is supported.
	Policy TemplatePolicy `json:"policy"`
}

// Validate checks that the template has a usable target path and policy.
func (t ConfigTemplate) Validate() error {
	if err := ValidateRelativePath(t.TargetPath); err != nil {
		return fmt.Errorf("template %q: %w", t.Name, err)
	}
	if t.Policy != CreateIfAbsent {
		return fmt.Errorf("template %q: unsupported policy %q", t.Name, t.Policy)
	}
	return nil
}

// StepKind identifies one container platform action in the service plan.
type StepKind string

const (
	// StepBuild builds every image declared in the compose file.
	StepBuild StepKind = "build"

	// StepStartDependencies starts the stateful dependency services in
	// detached mode, leaving the application service unstarted.
	StepStartDependencies StepKind = "start-dependencies"

	// StepAwaitReadiness waits for the dependency services to be reachable.
	StepAwaitReadiness StepKind = "await-readiness"

	// StepRunOneShot runs the initialization command inside a disposable
	// instance of the application container.
	StepRunOneShot StepKind = "run-one-shot"
)

// String returns the string representation of StepKind.
func (k StepKind) String() string {
	return string(k)
}

// ServiceStep is one orchestration action against the container platform.
// Steps execute strictly in sequence; a step is attempted only if every
// prior step succeeded.
type ServiceStep struct {
	// Kind selects the action.
	Kind StepKind `json:"kind"`

	// Services names the compose services the step targets. For
	// StepStartDependencies these are the dependency services; for
	// StepRunOneShot it holds exactly the application service.
	Services []string `json:"services,omitempty"`

	// Command is the one-shot command for StepRunOneShot.
	Command []string `json:"command,omitempty"`
}

// String renders the step for logs, e.g. "run-one-shot api: python scripts/init_db.py".
func (s ServiceStep) String() string {
	var b strings.Builder
	b.WriteString(s.Kind.String())
	if len(s.Services) > 0 {
		b.WriteString(" ")
		b.WriteString(strings.Join(s.Services, ","))
	}
	if len(s.Command) > 0 {
		b.WriteString(": ")
		b.WriteString(strings.Join(s.Command, " "))
	}
	return b.String()
}

// ValidateRelativePath rejects paths that would escape the project root:
// empty paths, absolute paths, and paths containing a ".." segment.
func ValidateRelativePath(p string) error {
	if strings.TrimSpace(p) == "" {
		return fmt.Errorf("path must not be empty")
	}
	if path.IsAbs(p) || strings.HasPrefix(p, `\`) || (len(p) > 1 && p[1] == ':') {
		return fmt.Errorf("path %q must be relative to the project root", p)
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return fmt.Errorf("path %q must not contain '..'", p)
		}
	}
	return nil
}

// ContainerInfo holds runtime information about a compose-managed container.
// It is fetched from the Docker API on demand and never persisted.
type ContainerInfo struct {
	// ContainerID is the Docker container identifier.
	ContainerID string `json:"containerId"`

	// ContainerName is the human-readable name, without the leading "/".
	ContainerName string `json:"containerName"`

	// ServiceName is the compose service the container belongs to.
	ServiceName string `json:"serviceName"`

	// State is the Docker state ("running", "exited", "created", ...).
	State string `json:"state"`

	// Health is the healthcheck status ("starting", "healthy",
	// "unhealthy"), or empty when the service defines no healthcheck.
	Health string `json:"health,omitempty"`
}

// Ready reports whether the container is running and, when it has a
// healthcheck, healthy.
func (c ContainerInfo) Ready() bool {
	if c.State != "running" {
		return false
	}
	return c.Health == "" || c.Health == "healthy"
}
