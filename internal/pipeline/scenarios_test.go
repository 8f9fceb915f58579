package pipeline

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmr-tortoise/mcp-bootstrap/internal/model"
	"github.com/mmr-tortoise/mcp-bootstrap/internal/orchestrator"
	"github.com/mmr-tortoise/mcp-bootstrap/internal/prereq"
	"github.com/mmr-tortoise/mcp-bootstrap/internal/scaffold"
	"github.com/mmr-tortoise/mcp-bootstrap/internal/skeleton"
)

// fakePlatform stands in for both the compose tool and the readiness wait.
type fakePlatform struct {
	events []string
	runErr error
}

func (f *fakePlatform) Build(context.Context) error {
	f.events = append(f.events, "build")
	return nil
}

func (f *fakePlatform) Up(_ context.Context, services ...string) error {
	f.events = append(f.events, "up "+strings.Join(services, " "))
	return nil
}

func (f *fakePlatform) Run(_ context.Context, service string, command []string) error {
	f.events = append(f.events, "run "+service+" "+strings.Join(command, " "))
	return f.runErr
}

func (f *fakePlatform) Await(context.Context) error {
	f.events = append(f.events, "await")
	return nil
}

// lookPath resolves every binary except the missing ones.
func lookPath(missing ...string) func(string) (string, error) {
	return func(name string) (string, error) {
		for _, m := range missing {
			if m == name {
				return "", errors.New("executable file not found in $PATH")
			}
		}
		return "/usr/bin/" + name, nil
	}
}

func newBootstrap(root string, platform *fakePlatform, missing ...string) *Pipeline {
	plan := orchestrator.Plan{
		Dependencies: []string{"postgres", "redis"},
		App:          "api",
		InitCommand:  []string{"python", "scripts/init_db.py"},
	}

	stages := BootstrapStages(Components{
		Prerequisites: prereq.NewChecker(prereq.DefaultRequirements("docker-compose"), prereq.WithLookPath(lookPath(missing...))),
		Skeleton:      skeleton.NewBuilder(root),
		Layout:        skeleton.DefaultLayout(),
		Config:        scaffold.NewMaterializer(root, nil),
		Templates:     scaffold.DefaultTemplates(),
		Services:      orchestrator.New(platform, platform, plan),
	})
	return New(stages, WithNextSteps(NextSteps("docker-compose")))
}

// tree lists every path under root, relative and slash-separated.
func tree(t *testing.T, root string) []string {
	t.Helper()
	var out []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil || p == root {
			return err
		}
		rel, _ := filepath.Rel(root, p)
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	require.NoError(t, err)
	sort.Strings(out)
	return out
}

// TestScenarioA_EmptyDirectory: everything is created and the run succeeds.
func TestScenarioA_EmptyDirectory(t *testing.T) {
	root := t.TempDir()
	platform := &fakePlatform{}

	report, err := newBootstrap(root, platform).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusOK, report.Status)
	assert.NotEmpty(t, report.NextSteps)

	layout := skeleton.DefaultLayout()
	for _, dir := range layout.Directories {
		info, err := os.Stat(filepath.Join(root, dir))
		require.NoError(t, err, dir)
		assert.True(t, info.IsDir(), dir)
	}
	for _, m := range layout.Markers {
		info, err := os.Stat(filepath.Join(root, string(m)))
		require.NoError(t, err, m)
		assert.Zero(t, info.Size(), "markers are empty")
	}
	env, err := os.ReadFile(filepath.Join(root, scaffold.EnvFilePath))
	require.NoError(t, err)
	assert.Equal(t, scaffold.EnvTemplate().Content, env)
	ignore, err := os.ReadFile(filepath.Join(root, scaffold.IgnoreFilePath))
	require.NoError(t, err)
	assert.Equal(t, scaffold.IgnoreTemplate().Content, ignore)

	assert.Equal(t, []string{
		"build",
		"up postgres redis",
		"await",
		"run api python scripts/init_db.py",
	}, platform.events)

	// Nothing outside the expected set was created.
	want := map[string]bool{scaffold.EnvFilePath: true, scaffold.IgnoreFilePath: true}
	for _, dir := range layout.Directories {
		for p := dir; p != "."; p = filepath.ToSlash(filepath.Dir(p)) {
			want[p] = true
		}
	}
	for _, m := range layout.Markers {
		want[string(m)] = true
	}
	for _, p := range tree(t, root) {
		assert.True(t, want[p], "unexpected path %s", p)
	}
}

// TestScenarioA_Idempotent: a second run over the result changes nothing.
func TestScenarioA_Idempotent(t *testing.T) {
	root := t.TempDir()
	_, err := newBootstrap(root, &fakePlatform{}).Run(context.Background())
	require.NoError(t, err)
	before := tree(t, root)

	report, err := newBootstrap(root, &fakePlatform{}).Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Created)
	assert.Equal(t, before, tree(t, root))
}

// TestScenarioB_EngineMissing: fails before any directory is created.
func TestScenarioB_EngineMissing(t *testing.T) {
	root := t.TempDir()
	platform := &fakePlatform{}

	report, err := newBootstrap(root, platform, "docker").Run(context.Background())

	var missing *model.MissingToolError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "Docker is not installed. Please install Docker first.", err.Error())
	assert.Equal(t, model.ExitMissingTool, missing.ExitCode())

	assert.Empty(t, tree(t, root), "no filesystem side effects")
	assert.Empty(t, platform.events)
	assert.Empty(t, report.NextSteps)
	assert.Equal(t, StatusSkipped, report.Stages[1].Status)
}

func TestScenarioB_ComposeMissing(t *testing.T) {
	root := t.TempDir()
	_, err := newBootstrap(root, &fakePlatform{}, "docker-compose").Run(context.Background())

	assert.EqualError(t, err, "Docker Compose is not installed. Please install Docker Compose first.")
	assert.Empty(t, tree(t, root))
}

// TestScenarioC_ExistingEnvPreserved: a customized .env survives a full run.
func TestScenarioC_ExistingEnvPreserved(t *testing.T) {
	root := t.TempDir()
	custom := []byte("DATABASE_URL=postgresql://me@elsewhere/db\nDEBUG=false\n")
	require.NoError(t, os.WriteFile(filepath.Join(root, scaffold.EnvFilePath), custom, 0o600))

	report, err := newBootstrap(root, &fakePlatform{}).Run(context.Background())
	require.NoError(t, err)
	assert.NotContains(t, report.Created, scaffold.EnvFilePath)
	assert.Contains(t, report.Created, scaffold.IgnoreFilePath)

	got, err := os.ReadFile(filepath.Join(root, scaffold.EnvFilePath))
	require.NoError(t, err)
	assert.Equal(t, custom, got)
}

// TestScenarioD_InitCommandFails: non-zero exit and no ready instructions.
func TestScenarioD_InitCommandFails(t *testing.T) {
	root := t.TempDir()
	platform := &fakePlatform{runErr: &model.OrchestrationStepError{
		Step:       model.StepRunOneShot,
		Command:    []string{"docker-compose", "run", "--rm", "api", "python", "scripts/init_db.py"},
		ExitStatus: 1,
	}}

	report, err := newBootstrap(root, platform).Run(context.Background())

	var coder model.ExitCoder
	require.True(t, errors.As(err, &coder))
	assert.Equal(t, model.ExitCode(1), coder.ExitCode())
	assert.Equal(t, StatusFailed, report.Status)
	assert.Empty(t, report.NextSteps)
	assert.Equal(t, StatusFailed, report.Stages[3].Status)
}

// TestFailFast_SkeletonFailure: a filesystem error stops before config and
// services.
func TestFailFast_SkeletonFailure(t *testing.T) {
	root := t.TempDir()
	// A regular file where the scripts directory belongs.
	require.NoError(t, os.WriteFile(filepath.Join(root, "scripts"), []byte("oops"), 0o644))
	platform := &fakePlatform{}

	report, err := newBootstrap(root, platform).Run(context.Background())

	var fsErr *model.FilesystemError
	require.True(t, errors.As(err, &fsErr))
	assert.Equal(t, model.ExitFilesystemError, fsErr.ExitCode())

	_, statErr := os.Stat(filepath.Join(root, scaffold.EnvFilePath))
	assert.True(t, errors.Is(statErr, fs.ErrNotExist), "config stage must not run")
	assert.Empty(t, platform.events, "services stage must not run")
	assert.Equal(t, StatusSkipped, report.Stages[2].Status)
	assert.Equal(t, StatusSkipped, report.Stages[3].Status)
}
