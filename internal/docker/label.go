package docker

import (
	"regexp"
	"strings"
)

// Labels compose stamps on every container it creates. They identify which
// project and service a container belongs to without any state file.
const (
	// LabelComposeProject holds the compose project name.
	LabelComposeProject = "com.docker.compose.project"

	// LabelComposeService holds the service name from the compose file.
	LabelComposeService = "com.docker.compose.service"

	// LabelComposeOneOff is "True" for containers started by "compose run".
	LabelComposeOneOff = "com.docker.compose.oneoff"
)

var invalidProjectChars = regexp.MustCompile(`[^-_a-z0-9]+`)

// NormalizeProjectName converts a directory name into a compose project
// name the same way compose does: lowercase, only [a-z0-9_-] kept, and no
// leading '-' or '_'.
//
// Examples:
//
//	"MCP Server"   → "mcpserver"
//	"_my.project-" → "myproject-"
func NormalizeProjectName(name string) string {
	n := invalidProjectChars.ReplaceAllString(strings.ToLower(name), "")
	return strings.TrimLeft(n, "-_")
}
