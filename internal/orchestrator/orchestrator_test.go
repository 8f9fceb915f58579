package orchestrator

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmr-tortoise/mcp-bootstrap/internal/docker"
	"github.com/mmr-tortoise/mcp-bootstrap/internal/model"
)

// recorder collects the order in which the platform was driven.
type recorder struct {
	events []string
	fail   map[string]error
}

func (r *recorder) record(name string) error {
	r.events = append(r.events, name)
	return r.fail[name]
}

func (r *recorder) Build(context.Context) error { return r.record("build") }

func (r *recorder) Up(_ context.Context, services ...string) error {
	return r.record("up " + strings.Join(services, " "))
}

func (r *recorder) Run(_ context.Context, service string, command []string) error {
	return r.record("run " + service + " " + strings.Join(command, " "))
}

func (r *recorder) Await(context.Context) error { return r.record("await") }

const composeYAML = `
services:
  postgres:
    image: postgres:15
  redis:
    image: redis:7
  api:
    build: .
`

// analyzerPlan is the code analyzer stack without a compose file check.
func analyzerPlan() Plan {
	return Plan{
		Dependencies: []string{"postgres", "redis"},
		App:          "api",
		InitCommand:  []string{"python", "scripts/init_db.py"},
	}
}

func planWithCompose(t *testing.T, content string) Plan {
	t.Helper()
	p := analyzerPlan()
	p.ComposeFile = filepath.Join(t.TempDir(), "docker-compose.yml")
	if content != "" {
		require.NoError(t, os.WriteFile(p.ComposeFile, []byte(content), 0o644))
	}
	return p
}

func TestPlan_Steps(t *testing.T) {
	steps := analyzerPlan().Steps()
	require.Len(t, steps, 4)
	assert.Equal(t, "build", steps[0].String())
	assert.Equal(t, "start-dependencies postgres,redis", steps[1].String())
	assert.Equal(t, "await-readiness postgres,redis", steps[2].String())
	assert.Equal(t, "run-one-shot api: python scripts/init_db.py", steps[3].String())
}

// TestRun_Sequence verifies build < start < wait < run.
func TestRun_Sequence(t *testing.T) {
	r := &recorder{}
	o := New(r, r, planWithCompose(t, composeYAML))

	require.NoError(t, o.Run(context.Background()))
	assert.Equal(t, []string{
		"build",
		"up postgres redis",
		"await",
		"run api python scripts/init_db.py",
	}, r.events)
}

// TestRun_StopsAtFirstFailure verifies no later step runs after a failure.
func TestRun_StopsAtFirstFailure(t *testing.T) {
	tests := []struct {
		name      string
		failAt    string
		err       error
		wantSteps []string
	}{
		{
			name:      "build fails",
			failAt:    "build",
			err:       &model.OrchestrationStepError{Step: model.StepBuild, ExitStatus: 1},
			wantSteps: []string{"build"},
		},
		{
			name:      "up fails",
			failAt:    "up postgres redis",
			err:       &model.OrchestrationStepError{Step: model.StepStartDependencies, ExitStatus: 1},
			wantSteps: []string{"build", "up postgres redis"},
		},
		{
			name:      "readiness times out",
			failAt:    "await",
			err:       &model.TimeoutError{What: "dependency services", Waited: time.Minute},
			wantSteps: []string{"build", "up postgres redis", "await"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &recorder{fail: map[string]error{tt.failAt: tt.err}}
			err := New(r, r, planWithCompose(t, composeYAML)).Run(context.Background())

			assert.Same(t, tt.err, err)
			assert.Equal(t, tt.wantSteps, r.events)
		})
	}
}

// TestRun_OneShotFailure covers a failing initialization command: the
// dependencies were started and the tool's status is what the caller sees.
func TestRun_OneShotFailure(t *testing.T) {
	stepErr := &model.OrchestrationStepError{Step: model.StepRunOneShot, ExitStatus: 3, Output: "relation already exists"}
	r := &recorder{fail: map[string]error{"run api python scripts/init_db.py": stepErr}}

	err := New(r, r, planWithCompose(t, composeYAML)).Run(context.Background())

	var got *model.OrchestrationStepError
	require.True(t, errors.As(err, &got))
	assert.Equal(t, model.ExitCode(3), got.ExitCode())
	assert.Contains(t, r.events, "up postgres redis")
}

func TestRun_ComposeFileChecks(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		r := &recorder{}
		err := New(r, r, planWithCompose(t, "")).Run(context.Background())

		var stepErr *model.OrchestrationStepError
		require.True(t, errors.As(err, &stepErr))
		assert.Equal(t, model.StepBuild, stepErr.Step)
		assert.Equal(t, -1, stepErr.ExitStatus)
		assert.True(t, errors.Is(err, fs.ErrNotExist))
		assert.Empty(t, r.events, "the platform must not be invoked")
	})

	t.Run("undeclared service", func(t *testing.T) {
		r := &recorder{}
		err := New(r, r, planWithCompose(t, "services:\n  postgres:\n    image: postgres\n")).Run(context.Background())

		var undeclared *docker.UndeclaredServicesError
		require.True(t, errors.As(err, &undeclared))
		assert.Equal(t, []string{"redis", "api"}, undeclared.Services)
		assert.Empty(t, r.events)
	})

	t.Run("check disabled", func(t *testing.T) {
		r := &recorder{}
		require.NoError(t, New(r, r, analyzerPlan()).Run(context.Background()))
		assert.Len(t, r.events, 4)
	})

	t.Run("file looked up in project dir", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "compose.yaml"), []byte(composeYAML), 0o644))

		r := &recorder{}
		p := analyzerPlan()
		p.ProjectDir = dir
		require.NoError(t, New(r, r, p).Run(context.Background()))
		assert.Len(t, r.events, 4)
	})

	t.Run("no file in project dir", func(t *testing.T) {
		r := &recorder{}
		p := analyzerPlan()
		p.ProjectDir = t.TempDir()
		err := New(r, r, p).Run(context.Background())

		var stepErr *model.OrchestrationStepError
		require.True(t, errors.As(err, &stepErr))
		assert.Equal(t, model.StepBuild, stepErr.Step)
		assert.True(t, errors.Is(err, fs.ErrNotExist))
		assert.Empty(t, r.events)
	})
}

func TestRun_InvalidPlan(t *testing.T) {
	r := &recorder{}
	err := New(r, r, Plan{}).Run(context.Background())
	assert.ErrorContains(t, err, "no dependency services")
	assert.Empty(t, r.events)
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := &recorder{}
	err := New(r, r, planWithCompose(t, composeYAML)).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, r.events)
}
