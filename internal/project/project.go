// Package project locates the checkout the bootstrap operates on.
//
// When no directory is given, the current working directory is used. If it
// has no compose file but lies inside a Git work tree whose top level has
// one, the top level is used instead, so the bootstrap behaves the same from
// any subdirectory of the checkout. A compose project nested in an outer
// repository keeps its own directory. Git is optional: without it, or
// outside a repository, the directory is used as-is.
package project

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/mmr-tortoise/mcp-bootstrap/internal/docker"
	"github.com/mmr-tortoise/mcp-bootstrap/internal/model"
)

// Resolver finds the project root.
type Resolver struct {
	getwd    func() (string, error)
	lookPath func(string) (string, error)
}

// NewResolver returns a Resolver using the process working directory and
// PATH.
func NewResolver() *Resolver {
	return &Resolver{getwd: os.Getwd, lookPath: exec.LookPath}
}

// Root returns the absolute project root. An explicit dir is used exactly
// as given; it must be an existing directory. An empty dir means the
// working directory, widened to its Git top level when only the top level
// holds a compose file.
func (r *Resolver) Root(ctx context.Context, dir string) (string, error) {
	explicit := dir != ""
	if !explicit {
		wd, err := r.getwd()
		if err != nil {
			return "", model.WrapCLIError(model.ExitFilesystemError, "failed to determine the working directory", err)
		}
		dir = wd
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", &model.FilesystemError{Path: dir, Op: "resolve", Err: err}
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", &model.FilesystemError{Path: abs, Op: "stat", Err: unwrapPathError(err)}
	}
	if !info.IsDir() {
		return "", &model.FilesystemError{Path: abs, Op: "stat", Err: fmt.Errorf("not a directory")}
	}

	if explicit || hasComposeFile(abs) {
		return abs, nil
	}
	if top, ok := r.gitTopLevel(ctx, abs); ok && hasComposeFile(top) {
		return top, nil
	}
	return abs, nil
}

func hasComposeFile(dir string) bool {
	_, err := docker.FindComposeFile(dir)
	return err == nil
}

// gitTopLevel returns the top level of the work tree containing dir.
func (r *Resolver) gitTopLevel(ctx context.Context, dir string) (string, bool) {
	if _, err := r.lookPath("git"); err != nil {
		return "", false
	}
	out, err := runGit(ctx, dir, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", false
	}
	top := strings.TrimSpace(out)
	if top == "" {
		return "", false
	}
	return filepath.Clean(top), true
}

// runGit executes git with -C dir and returns stdout. stderr is folded into
// the error.
func runGit(ctx context.Context, dir string, args ...string) (string, error) {
	fullArgs := append([]string{"-C", dir}, args...)

	// #nosec G204 -- args are constructed internally
	cmd := exec.CommandContext(ctx, "git", fullArgs...)

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return "", fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
		}
		return "", fmt.Errorf("git %s: %s: %w", strings.Join(args, " "), msg, err)
	}
	return stdout.String(), nil
}

func unwrapPathError(err error) error {
	if pe, ok := err.(*os.PathError); ok {
		return pe.Err
	}
	return err
}
