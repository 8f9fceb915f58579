package pipeline

import (
	"context"
	"fmt"

	"github.com/mmr-tortoise/mcp-bootstrap/internal/model"
	"github.com/mmr-tortoise/mcp-bootstrap/internal/skeleton"
)

// Stage names, in execution order.
const (
	StagePrerequisites = "prerequisites"
	StageSkeleton      = "skeleton"
	StageConfig        = "config"
	StageServices      = "services"
)

// PrerequisiteChecker is satisfied by *prereq.Checker.
type PrerequisiteChecker interface {
	Check(ctx context.Context) error
}

// SkeletonBuilder is satisfied by *skeleton.Builder.
type SkeletonBuilder interface {
	EnsureDirectories(dirs model.DirectorySpec) ([]string, error)
	EnsureMarkerFiles(markers []model.PackageMarker) ([]string, error)
}

// ConfigMaterializer is satisfied by *scaffold.Materializer.
type ConfigMaterializer interface {
	MaterializeAll(templates []model.ConfigTemplate) ([]string, error)
}

// ServiceOrchestrator is satisfied by *orchestrator.Orchestrator.
type ServiceOrchestrator interface {
	Run(ctx context.Context) error
}

// Components are the collaborators of the bootstrap stages.
type Components struct {
	Prerequisites PrerequisiteChecker
	Skeleton      SkeletonBuilder
	Layout        skeleton.Layout
	Config        ConfigMaterializer
	Templates     []model.ConfigTemplate
	Services      ServiceOrchestrator
}

// BootstrapStages returns the four stages in their fixed order.
func BootstrapStages(c Components) []Stage {
	return []Stage{
		{
			Name: StagePrerequisites,
			Run: func(ctx context.Context) ([]string, error) {
				return nil, c.Prerequisites.Check(ctx)
			},
		},
		{
			Name: StageSkeleton,
			Run: func(context.Context) ([]string, error) {
				dirs, err := c.Skeleton.EnsureDirectories(c.Layout.Directories)
				if err != nil {
					return dirs, err
				}
				markers, err := c.Skeleton.EnsureMarkerFiles(c.Layout.Markers)
				return append(dirs, markers...), err
			},
		},
		{
			Name: StageConfig,
			Run: func(context.Context) ([]string, error) {
				return c.Config.MaterializeAll(c.Templates)
			},
		},
		{
			Name: StageServices,
			Run: func(ctx context.Context) ([]string, error) {
				return nil, c.Services.Run(ctx)
			},
		},
	}
}

// NextSteps returns the operator instructions printed after a successful
// bootstrap.
func NextSteps(composeCommand string) []string {
	return []string{
		fmt.Sprintf("Start the full stack:   %s up", composeCommand),
		"API:                    http://localhost:8000",
		"API documentation:      http://localhost:8000/docs",
		"Task monitor (Flower):  http://localhost:5555",
	}
}
