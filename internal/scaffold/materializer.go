// Package scaffold writes the default configuration artifacts of a fresh
// checkout: the environment-variables file and the ignore-rules file.
//
// Templates follow a create-if-absent policy. An existing file is the
// expected steady state on repeated runs and is never opened for writing;
// the template is a default, not a migration. New files are written
// atomically through github.com/moby/sys/atomicwriter (temporary file in the
// target directory, then rename), so a partially written file is never
// observable.
package scaffold

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/moby/sys/atomicwriter"

	"github.com/mmr-tortoise/mcp-bootstrap/internal/model"
)

const filePerm fs.FileMode = 0o644

// Materializer writes ConfigTemplates under a project root.
type Materializer struct {
	root   string
	logger *slog.Logger
}

// NewMaterializer creates a Materializer rooted at root.
func NewMaterializer(root string, logger *slog.Logger) *Materializer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Materializer{root: root, logger: logger}
}

// Materialize writes tpl.Content to tpl.TargetPath when nothing exists
// there. It reports whether the file was created. An existing target, of
// any type, is left untouched and is not an error.
func (m *Materializer) Materialize(tpl model.ConfigTemplate) (bool, error) {
	if err := tpl.Validate(); err != nil {
		return false, &model.FilesystemError{Path: tpl.TargetPath, Op: "write", Err: err}
	}
	target := filepath.Join(m.root, filepath.FromSlash(tpl.TargetPath))

	// Lstat so that a dangling symlink also counts as "present".
	_, err := os.Lstat(target)
	switch {
	case err == nil:
		m.logger.Debug("config file exists, keeping it", "template", tpl.Name, "path", target)
		return false, nil
	case !errors.Is(err, fs.ErrNotExist):
		return false, &model.FilesystemError{Path: target, Op: "stat", Err: unwrapPathError(err)}
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return false, &model.FilesystemError{Path: filepath.Dir(target), Op: "mkdir", Err: unwrapPathError(err)}
	}
	if err := atomicwriter.WriteFile(target, tpl.Content, filePerm); err != nil {
		return false, &model.FilesystemError{Path: target, Op: "write", Err: unwrapPathError(err)}
	}

	m.logger.Debug("config file created", "template", tpl.Name, "path", target, "bytes", len(tpl.Content))
	return true, nil
}

// MaterializeAll applies templates in order and returns the target paths
// that were created. It stops at the first failure.
func (m *Materializer) MaterializeAll(templates []model.ConfigTemplate) ([]string, error) {
	var created []string
	for _, tpl := range templates {
		made, err := m.Materialize(tpl)
		if err != nil {
			return created, err
		}
		if made {
			created = append(created, tpl.TargetPath)
		}
	}
	return created, nil
}

func unwrapPathError(err error) error {
	var pe *fs.PathError
	if errors.As(err, &pe) {
		return pe.Err
	}
	return err
}
