package skeleton

import "github.com/mmr-tortoise/mcp-bootstrap/internal/model"

// Layout is the full skeleton: directories first, then marker files.
type Layout struct {
	Directories model.DirectorySpec
	Markers     []model.PackageMarker
}

// markerName is the file that declares a Python package.
const markerName = "__init__.py"

// packageDirs are the importable module roots of the application and test
// trees. Each one receives a marker file.
var packageDirs = []string{
	"src",
	"src/api",
	"src/api/endpoints",
	"src/core",
	"src/core/models",
	"src/core/schemas",
	"src/analyzers",
	"src/analyzers/python",
	"src/knowledge",
	"src/workers",
	"tests",
	"tests/unit",
	"tests/integration",
}

// DefaultLayout returns the skeleton of the code analyzer project: container
// tooling, scripts, the application source tree with its sub-packages, the
// unit and integration test trees, and documentation.
func DefaultLayout() Layout {
	dirs := model.DirectorySpec{
		"docker",
		"scripts",
		"src/api/endpoints",
		"src/core/models",
		"src/core/schemas",
		"src/analyzers/python",
		"src/knowledge",
		"src/workers",
		"tests/unit",
		"tests/integration",
		"docs",
	}

	markers := make([]model.PackageMarker, 0, len(packageDirs))
	for _, d := range packageDirs {
		markers = append(markers, model.PackageMarker(d+"/"+markerName))
	}

	return Layout{Directories: dirs, Markers: markers}
}
