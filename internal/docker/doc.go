// Package docker wraps the container platform for the mcp-bootstrap CLI.
//
// This package handles:
//   - Docker client initialization with automatic socket detection
//     (Linux, macOS, Windows) and daemon liveness checks
//   - Looking up the containers compose created for a service, using the
//     com.docker.compose.* labels compose stamps on every container
//   - Running the compose tool (build, up -d, run --rm) as a child process
//     whose output is streamed to the operator and captured for errors
//   - Parsing the project's compose file to catch undeclared services
//     before anything is started
//
// The package uses github.com/docker/docker/client for API calls, with
// version negotiation enabled, and shells out to the compose binary for
// orchestration because compose itself is not exposed through the Engine API.
package docker
