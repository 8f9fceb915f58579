package project

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmr-tortoise/mcp-bootstrap/internal/model"
)

// setupTestRepo creates a Git repository in a temp directory. The test is
// skipped when git is not installed.
func setupTestRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}

	dir := t.TempDir()
	cmd := exec.Command("git", "init", "-q", dir)
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git init: %s", out)

	// Resolve symlinks (macOS /var -> /private/var) so paths compare equal
	// to what git reports.
	resolved, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	return resolved
}

func resolverAt(wd string) *Resolver {
	return &Resolver{
		getwd:    func() (string, error) { return wd, nil },
		lookPath: exec.LookPath,
	}
}

func writeComposeFile(t *testing.T, dir string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "docker-compose.yml"), []byte("services: {}\n"), 0o644))
}

func TestRoot_ClimbsToGitTopLevel(t *testing.T) {
	repo := setupTestRepo(t)
	writeComposeFile(t, repo)
	sub := filepath.Join(repo, "src", "api")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	root, err := resolverAt(sub).Root(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, repo, root)
}

// TestRoot_NestedComposeProject verifies that a compose project inside an
// outer repository is not widened to the outer top level.
func TestRoot_NestedComposeProject(t *testing.T) {
	repo := setupTestRepo(t)
	nested := filepath.Join(repo, "tools", "analyzer")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	writeComposeFile(t, nested)

	root, err := resolverAt(nested).Root(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, nested, root)
}

func TestRoot_TopLevelWithoutComposeFile(t *testing.T) {
	repo := setupTestRepo(t)
	sub := filepath.Join(repo, "src")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	root, err := resolverAt(sub).Root(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, sub, root)
}

func TestRoot_ExplicitDirIsNotWidened(t *testing.T) {
	repo := setupTestRepo(t)
	sub := filepath.Join(repo, "services", "analyzer")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	root, err := resolverAt("/").Root(context.Background(), sub)
	require.NoError(t, err)
	assert.Equal(t, sub, root)
}

func TestRoot_OutsideRepository(t *testing.T) {
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	// A ceiling keeps git from discovering a repository above the temp dir.
	t.Setenv("GIT_CEILING_DIRECTORIES", filepath.Dir(dir))

	root, err := resolverAt(dir).Root(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, dir, root)
}

func TestRoot_WithoutGit(t *testing.T) {
	dir := t.TempDir()
	r := &Resolver{
		getwd:    func() (string, error) { return dir, nil },
		lookPath: func(string) (string, error) { return "", exec.ErrNotFound },
	}

	root, err := r.Root(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, dir, root)
}

func TestRoot_Errors(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "README.md")
	require.NoError(t, os.WriteFile(file, []byte("# x\n"), 0o644))

	r := resolverAt(dir)
	var fsErr *model.FilesystemError

	_, err := r.Root(context.Background(), filepath.Join(dir, "missing"))
	require.True(t, errors.As(err, &fsErr))
	assert.True(t, errors.Is(err, os.ErrNotExist))

	_, err = r.Root(context.Background(), file)
	require.True(t, errors.As(err, &fsErr))
	assert.Contains(t, err.Error(), "not a directory")

	broken := &Resolver{getwd: func() (string, error) { return "", errors.New("getwd: gone") }}
	_, err = broken.Root(context.Background(), "")
	var cliErr *model.CLIError
	require.True(t, errors.As(err, &cliErr))
	assert.Equal(t, model.ExitFilesystemError, cliErr.Code)
}
