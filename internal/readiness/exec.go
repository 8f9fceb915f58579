package readiness

import (
	"context"
	"fmt"
	"path"
	"strings"
)

// Execer is satisfied by *docker.Compose.
type Execer interface {
	Exec(ctx context.Context, service string, command []string) ([]byte, error)
}

// ExecCheck is a readiness command run inside a service container. Expect,
// when set, must appear in the command output.
type ExecCheck struct {
	Command []string
	Expect  string
}

// knownExecChecks are the in-container checks of images that ship their
// own client tools, keyed by image repository name.
var knownExecChecks = map[string]ExecCheck{
	"postgres": {Command: []string{"pg_isready", "-q"}},
	"redis":    {Command: []string{"redis-cli", "ping"}, Expect: "PONG"},
}

// ExecCheckFor returns the in-container check for a service, matched on the
// repository name of image ("postgres:15-alpine" matches "postgres") or,
// when image is empty or unknown, on the service name.
func ExecCheckFor(service, image string) (ExecCheck, bool) {
	if repo := imageRepository(image); repo != "" {
		if c, ok := knownExecChecks[repo]; ok {
			return c, true
		}
	}
	c, ok := knownExecChecks[service]
	return c, ok
}

// imageRepository strips registry, namespace, tag and digest:
// "docker.io/library/postgres:15@sha256:..." becomes "postgres".
func imageRepository(image string) string {
	if i := strings.Index(image, "@"); i >= 0 {
		image = image[:i]
	}
	image = path.Base(image)
	if i := strings.Index(image, ":"); i >= 0 {
		image = image[:i]
	}
	if image == "." || image == "/" {
		return ""
	}
	return image
}

// ExecProbe passes when Check succeeds inside the running container of
// Service. Unlike ContainerProbe it observes the server process itself, so
// it covers services without a healthcheck.
type ExecProbe struct {
	Execer  Execer
	Service string
	Check   ExecCheck
}

// Name implements Probe.
func (p *ExecProbe) Name() string {
	return p.Service + " " + p.Check.Command[0]
}

// Probe implements Probe.
func (p *ExecProbe) Probe(ctx context.Context) error {
	out, err := p.Execer.Exec(ctx, p.Service, p.Check.Command)
	if err != nil {
		return err
	}
	if p.Check.Expect != "" && !strings.Contains(string(out), p.Check.Expect) {
		return fmt.Errorf("unexpected response %q", strings.TrimSpace(string(out)))
	}
	return nil
}
