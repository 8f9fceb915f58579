package readiness

import (
	"context"
	"fmt"
	"strings"

	"github.com/mmr-tortoise/mcp-bootstrap/internal/model"
)

// Probe checks one dependency. A nil error means the dependency is ready.
type Probe interface {
	Name() string
	Probe(ctx context.Context) error
}

// ContainerLister is satisfied by *docker.Client.
type ContainerLister interface {
	ServiceContainers(ctx context.Context, project, service string) ([]model.ContainerInfo, error)
}

// ContainerProbe passes when every container compose created for Service
// is running, and healthy if the service defines a healthcheck.
type ContainerProbe struct {
	Lister  ContainerLister
	Project string
	Service string
}

// Name implements Probe.
func (p *ContainerProbe) Name() string {
	return p.Service + " container"
}

// Probe implements Probe.
func (p *ContainerProbe) Probe(ctx context.Context) error {
	containers, err := p.Lister.ServiceContainers(ctx, p.Project, p.Service)
	if err != nil {
		return err
	}
	if len(containers) == 0 {
		return fmt.Errorf("no container for service %q in project %q", p.Service, p.Project)
	}

	var notReady []string
	for _, c := range containers {
		if c.Ready() {
			continue
		}
		state := c.State
		if c.Health != "" {
			state += "/" + c.Health
		}
		notReady = append(notReady, c.ContainerName+" is "+state)
	}
	if len(notReady) > 0 {
		return fmt.Errorf("%s", strings.Join(notReady, ", "))
	}
	return nil
}
