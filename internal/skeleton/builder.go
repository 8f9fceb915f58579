// Package skeleton idempotently materializes the project's directory tree and
// the package marker files that make its source directories importable.
//
// Every operation is "create if missing": an existing directory is left as
// is, and an existing marker file is never opened for writing, so its
// content survives any number of re-runs. Filesystem failures are reported
// as model.FilesystemError and are not retried.
package skeleton

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/mmr-tortoise/mcp-bootstrap/internal/model"
)

const (
	dirPerm    fs.FileMode = 0o755
	markerPerm fs.FileMode = 0o644
)

// Builder creates directories and marker files under a project root.
type Builder struct {
	root string
}

// NewBuilder creates a Builder rooted at root. All paths given to its
// methods are slash-separated and relative to root.
func NewBuilder(root string) *Builder {
	return &Builder{root: root}
}

// EnsureDirectories creates every directory in dirs, including missing
// intermediate segments, in order. It returns the relative paths that did
// not exist before the call.
func (b *Builder) EnsureDirectories(dirs model.DirectorySpec) ([]string, error) {
	var created []string
	for _, rel := range dirs {
		if err := model.ValidateRelativePath(rel); err != nil {
			return created, &model.FilesystemError{Path: rel, Op: "mkdir", Err: err}
		}
		abs := b.abs(rel)

		existed := isDir(abs)
		// os.MkdirAll is a no-op for an existing directory and fails with
		// ENOTDIR when a regular file sits somewhere on the path.
		if err := os.MkdirAll(abs, dirPerm); err != nil {
			return created, &model.FilesystemError{Path: abs, Op: "mkdir", Err: unwrapPathError(err)}
		}
		if !existed {
			created = append(created, rel)
		}
	}
	return created, nil
}

// EnsureMarkerFiles creates each marker as an empty file when absent. An
// existing marker is never truncated. A directory occupying a marker path
// is a collision and fails.
func (b *Builder) EnsureMarkerFiles(markers []model.PackageMarker) ([]string, error) {
	var created []string
	for _, m := range markers {
		rel := string(m)
		if err := model.ValidateRelativePath(rel); err != nil {
			return created, &model.FilesystemError{Path: rel, Op: "create", Err: err}
		}
		abs := b.abs(rel)

		if err := os.MkdirAll(filepath.Dir(abs), dirPerm); err != nil {
			return created, &model.FilesystemError{Path: filepath.Dir(abs), Op: "mkdir", Err: unwrapPathError(err)}
		}

		made, err := createExclusive(abs)
		if err != nil {
			return created, err
		}
		if made {
			created = append(created, rel)
		}
	}
	return created, nil
}

// createExclusive creates an empty file with O_EXCL. It reports false with
// no error when a regular file already exists at path.
func createExclusive(path string) (bool, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, markerPerm)
	if err == nil {
		if cerr := f.Close(); cerr != nil {
			return false, &model.FilesystemError{Path: path, Op: "create", Err: cerr}
		}
		return true, nil
	}
	if !errors.Is(err, fs.ErrExist) {
		return false, &model.FilesystemError{Path: path, Op: "create", Err: unwrapPathError(err)}
	}

	info, statErr := os.Stat(path)
	if statErr != nil {
		return false, &model.FilesystemError{Path: path, Op: "stat", Err: unwrapPathError(statErr)}
	}
	if info.IsDir() {
		return false, &model.FilesystemError{Path: path, Op: "create", Err: fmt.Errorf("a directory exists at the marker path")}
	}
	return false, nil
}

func (b *Builder) abs(rel string) string {
	return filepath.Join(b.root, filepath.FromSlash(rel))
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// unwrapPathError strips the *fs.PathError wrapper so FilesystemError does
// not repeat the path in its message.
func unwrapPathError(err error) error {
	var pe *fs.PathError
	if errors.As(err, &pe) {
		return pe.Err
	}
	return err
}
