package docker

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"

	"github.com/mmr-tortoise/mcp-bootstrap/internal/model"
)

// defaultPingTimeout is the maximum duration to wait for a Docker daemon
// response during a Ping. Docker Desktop on macOS can take a few seconds.
const defaultPingTimeout = 5 * time.Second

// engineAPI is the subset of the Docker SDK client used by Client.
// *client.Client satisfies it; tests substitute a fake.
type engineAPI interface {
	Ping(ctx context.Context) (types.Ping, error)
	ContainerList(ctx context.Context, options container.ListOptions) ([]container.Summary, error)
	ContainerInspect(ctx context.Context, containerID string) (container.InspectResponse, error)
	Close() error
}

// Client wraps the Docker Engine SDK client. It verifies daemon
// connectivity for the prerequisite stage and reports the state of
// compose-managed containers for readiness probing.
//
// Usage:
//
//	c, err := docker.NewClient("")
//	if err != nil { /* handle */ }
//	defer c.Close()
//	if err := c.Ping(ctx); err != nil { /* Docker not running */ }
type Client struct {
	api engineAPI
}

// NewClient creates a Docker client. The host is resolved in this order:
//  1. the host argument, when non-empty
//  2. the DOCKER_HOST environment variable
//  3. platform-specific default sockets:
//     - Linux: /var/run/docker.sock
//     - macOS: /var/run/docker.sock, then ~/.docker/run/docker.sock
//     - Windows: npipe:////./pipe/docker_engine
//
// Returns a model.CLIError with ExitDockerNotRunning if no socket is found
// or the client cannot be created.
func NewClient(host string) (*Client, error) {
	if host == "" {
		host = os.Getenv("DOCKER_HOST")
	}
	if host == "" {
		detected, err := detectDockerHost()
		if err != nil {
			return nil, model.WrapCLIError(model.ExitDockerNotRunning, "Docker socket not found", err)
		}
		host = detected
	}

	c, err := client.NewClientWithOpts(
		client.WithHost(host),
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to create Docker client for host %q", host),
			err,
		)
	}
	return &Client{api: c}, nil
}

// detectDockerHost returns the Docker host URI for the current platform.
// Unix sockets are checked for existence only; Ping verifies connectivity.
func detectDockerHost() (string, error) {
	switch runtime.GOOS {
	case "linux":
		return detectUnixSocket([]string{"/var/run/docker.sock"})
	case "darwin":
		paths := []string{"/var/run/docker.sock"}
		if home, err := os.UserHomeDir(); err == nil {
			paths = append(paths, home+"/.docker/run/docker.sock")
		}
		return detectUnixSocket(paths)
	case "windows":
		// Named pipes cannot be stat'ed; let Ping report a missing daemon.
		return "npipe:////./pipe/docker_engine", nil
	default:
		return "", fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
}

// detectUnixSocket returns the host URI of the first path that exists.
func detectUnixSocket(paths []string) (string, error) {
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			return "unix://" + path, nil
		}
	}
	return "", fmt.Errorf("Docker socket not found at any of: %v (is Docker running?)", paths)
}

// Ping verifies that the Docker daemon is reachable and responsive, waiting
// up to defaultPingTimeout.
//
// Returns a model.CLIError with ExitDockerNotRunning if the daemon does not
// respond.
func (c *Client) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	if _, err := c.api.Ping(pingCtx); err != nil {
		return model.WrapCLIError(
			model.ExitDockerNotRunning,
			"Docker daemon is not responding (is Docker running?)",
			err,
		)
	}
	return nil
}

// ServiceContainers returns the long-running containers compose created
// for service in project. One-off containers started by "compose run" are
// excluded. Health is filled in from ContainerInspect for running
// containers that define a healthcheck.
func (c *Client) ServiceContainers(ctx context.Context, project, service string) ([]model.ContainerInfo, error) {
	args := filters.NewArgs(
		filters.Arg("label", LabelComposeProject+"="+project),
		filters.Arg("label", LabelComposeService+"="+service),
		filters.Arg("label", LabelComposeOneOff+"=False"),
	)
	list, err := c.api.ContainerList(ctx, container.ListOptions{All: true, Filters: args})
	if err != nil {
		return nil, fmt.Errorf("list containers for service %q: %w", service, err)
	}

	result := make([]model.ContainerInfo, 0, len(list))
	for _, s := range list {
		info := containerToInfo(s)
		if info.State == "running" {
			health, err := c.health(ctx, s.ID)
			if err != nil {
				return nil, err
			}
			info.Health = health
		}
		result = append(result, info)
	}
	return result, nil
}

// health returns the healthcheck status of a container, or "" when it has
// no healthcheck.
func (c *Client) health(ctx context.Context, id string) (string, error) {
	resp, err := c.api.ContainerInspect(ctx, id)
	if err != nil {
		return "", fmt.Errorf("inspect container %s: %w", shortID(id), err)
	}
	if resp.ContainerJSONBase == nil || resp.State == nil || resp.State.Health == nil {
		return "", nil
	}
	return string(resp.State.Health.Status), nil
}

// containerToInfo maps a Docker API summary to model.ContainerInfo.
// Docker returns names with a leading "/", which is stripped.
func containerToInfo(s container.Summary) model.ContainerInfo {
	name := ""
	if len(s.Names) > 0 {
		name = strings.TrimPrefix(s.Names[0], "/")
	}
	return model.ContainerInfo{
		ContainerID:   s.ID,
		ContainerName: name,
		ServiceName:   s.Labels[LabelComposeService],
		State:         string(s.State),
	}
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// Close releases the resources held by the Docker client. It is safe to
// call more than once.
func (c *Client) Close() error {
	if c.api != nil {
		return c.api.Close()
	}
	return nil
}

// LazyClient defers NewClient until the first call that needs the daemon.
// The prerequisite stage must report a missing docker binary before a
// missing socket, so the client cannot be dialed at startup.
type LazyClient struct {
	host string
	dial func(host string) (*Client, error)

	once   sync.Once
	client *Client
	err    error
}

// NewLazyClient returns a LazyClient for host; see NewClient for how an
// empty host is resolved.
func NewLazyClient(host string) *LazyClient {
	return &LazyClient{host: host, dial: NewClient}
}

func (l *LazyClient) get() (*Client, error) {
	l.once.Do(func() {
		l.client, l.err = l.dial(l.host)
	})
	return l.client, l.err
}

// Ping connects on first use and pings the daemon.
func (l *LazyClient) Ping(ctx context.Context) error {
	c, err := l.get()
	if err != nil {
		return err
	}
	return c.Ping(ctx)
}

// ServiceContainers connects on first use and lists the service's containers.
func (l *LazyClient) ServiceContainers(ctx context.Context, project, service string) ([]model.ContainerInfo, error) {
	c, err := l.get()
	if err != nil {
		return nil, err
	}
	return c.ServiceContainers(ctx, project, service)
}

// Close closes the underlying client if one was created.
func (l *LazyClient) Close() error {
	if l.client == nil {
		return nil
	}
	return l.client.Close()
}
