package docker

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ComposeFileNames are the file names searched for, in order. The legacy
// names come first because the standalone docker-compose binary only
// recognizes those.
var ComposeFileNames = []string{
	"docker-compose.yml",
	"docker-compose.yaml",
	"compose.yaml",
	"compose.yml",
}

// ComposeFile is the subset of a compose file needed to validate the
// service plan before anything is started.
type ComposeFile struct {
	// Path is the file the definition was read from.
	Path string `yaml:"-"`

	// Name is the optional top-level project name.
	Name string `yaml:"name,omitempty"`

	// Services maps service names to their definitions.
	Services map[string]ComposeService `yaml:"services"`
}

// ComposeService holds the service fields the bootstrap cares about.
// build and depends_on accept both short and long syntax, so they are kept
// as raw values.
type ComposeService struct {
	Image       string              `yaml:"image,omitempty"`
	Build       any                 `yaml:"build,omitempty"`
	DependsOn   any                 `yaml:"depends_on,omitempty"`
	Healthcheck *ComposeHealthcheck `yaml:"healthcheck,omitempty"`
}

// ComposeHealthcheck is a service healthcheck definition.
type ComposeHealthcheck struct {
	Test    any  `yaml:"test,omitempty"`
	Disable bool `yaml:"disable,omitempty"`
}

// FindComposeFile returns the path of the first compose file present in
// dir. The returned error wraps fs.ErrNotExist when there is none.
func FindComposeFile(dir string) (string, error) {
	for _, name := range ComposeFileNames {
		p := filepath.Join(dir, name)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, nil
		}
	}
	return "", fmt.Errorf("no compose file (%v) in %s: %w", ComposeFileNames, dir, fs.ErrNotExist)
}

// LoadComposeFile reads and parses the compose file at path.
func LoadComposeFile(path string) (*ComposeFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read compose file: %w", err)
	}

	var f ComposeFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse compose file %s: %w", path, err)
	}
	if len(f.Services) == 0 {
		return nil, fmt.Errorf("compose file %s declares no services", path)
	}
	f.Path = path
	return &f, nil
}

// ServiceNames returns the declared service names, sorted.
func (f *ComposeFile) ServiceNames() []string {
	names := make([]string, 0, len(f.Services))
	for name := range f.Services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasHealthcheck reports whether service declares an enabled healthcheck.
func (f *ComposeFile) HasHealthcheck(service string) bool {
	svc, ok := f.Services[service]
	return ok && svc.Healthcheck != nil && !svc.Healthcheck.Disable
}

// RequireServices returns an error naming every service in names that the
// file does not declare.
func (f *ComposeFile) RequireServices(names ...string) error {
	var missing []string
	for _, n := range names {
		if _, ok := f.Services[n]; !ok {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return &UndeclaredServicesError{Path: f.Path, Services: missing, Declared: f.ServiceNames()}
	}
	return nil
}

// UndeclaredServicesError reports services referenced by the plan but
// absent from the compose file.
type UndeclaredServicesError struct {
	Path     string
	Services []string

	// Declared lists the services the file does declare, sorted.
	Declared []string
}

func (e *UndeclaredServicesError) Error() string {
	return fmt.Sprintf("compose file %s does not declare service(s) %v (declared: %s)",
		e.Path, e.Services, strings.Join(e.Declared, ", "))
}
