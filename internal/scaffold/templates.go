package scaffold

import (
	_ "embed"

	"github.com/mmr-tortoise/mcp-bootstrap/internal/model"
)

// Target paths of the generated files, relative to the project root.
const (
	EnvFilePath    = ".env"
	IgnoreFilePath = ".gitignore"
)

//go:embed templates/env.tmpl
var envTemplate []byte

//go:embed templates/gitignore.tmpl
var ignoreTemplate []byte

// EnvTemplate returns the environment-variables file: debug flag and secret
// placeholder, database URL, cache URL, task-queue broker and result
// backend, model cache directory and embedding model, vector store
// directory, and the analysis tuning knobs.
func EnvTemplate() model.ConfigTemplate {
	return model.ConfigTemplate{
		Name:       "env",
		TargetPath: EnvFilePath,
		Content:    append([]byte(nil), envTemplate...),
		Policy:     model.CreateIfAbsent,
	}
}

// IgnoreTemplate returns the ignore-rules file.
func IgnoreTemplate() model.ConfigTemplate {
	return model.ConfigTemplate{
		Name:       "gitignore",
		TargetPath: IgnoreFilePath,
		Content:    append([]byte(nil), ignoreTemplate...),
		Policy:     model.CreateIfAbsent,
	}
}

// DefaultTemplates returns both templates in the order they are written.
func DefaultTemplates() []model.ConfigTemplate {
	return []model.ConfigTemplate{EnvTemplate(), IgnoreTemplate()}
}
