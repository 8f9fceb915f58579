// Package config loads the bootstrap settings.
//
// Settings are layered: built-in defaults, then an optional JSONC file
// (".mcp-bootstrap.jsonc" in the project root, or the --config path), then
// environment variables prefixed with MCP_BOOTSTRAP_. Every layer is
// optional; with no file and no variables the defaults reproduce the
// standard code analyzer setup.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/tidwall/jsonc"

	"github.com/mmr-tortoise/mcp-bootstrap/internal/docker"
	"github.com/mmr-tortoise/mcp-bootstrap/internal/model"
	"github.com/mmr-tortoise/mcp-bootstrap/internal/readiness"
)

// FileName is the config file looked up in the project root.
const FileName = ".mcp-bootstrap.jsonc"

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "MCP_BOOTSTRAP_"

// Config is the complete bootstrap configuration.
type Config struct {
	// ComposeCommand is the compose frontend, e.g. ["docker-compose"] or
	// ["docker", "compose"]. Its first element is a required tool.
	ComposeCommand []string `json:"composeCommand" env:"COMPOSE_COMMAND" envSeparator:" "`

	// ComposeFile is the compose file relative to the project root. Empty
	// lets compose pick its default file and overrides; setting it passes
	// "-f" to every compose call.
	ComposeFile string `json:"composeFile" env:"COMPOSE_FILE"`

	// ProjectName passes "-p" to every compose call. Empty leaves the name
	// to compose; see ComposeProject.
	ProjectName string `json:"projectName" env:"PROJECT_NAME"`

	// CheckDaemon pings the Docker daemon during the prerequisite stage.
	CheckDaemon bool `json:"checkDaemon" env:"CHECK_DAEMON"`

	// DockerHost overrides DOCKER_HOST for API calls.
	DockerHost string `json:"dockerHost" env:"DOCKER_HOST"`

	// LogFormat is "text" or "json".
	LogFormat string `json:"logFormat" env:"LOG_FORMAT"`

	// OTelEndpoint enables OTLP/HTTP tracing when set.
	OTelEndpoint string `json:"otelEndpoint" env:"OTEL_ENDPOINT"`

	Services  Services  `json:"services" envPrefix:"SERVICES_"`
	Readiness Readiness `json:"readiness" envPrefix:"READINESS_"`
}

// Services names the compose services the orchestrator drives.
type Services struct {
	Dependencies []string `json:"dependencies" env:"DEPENDENCIES" envSeparator:","`
	App          string   `json:"app" env:"APP"`
	InitCommand  []string `json:"initCommand" env:"INIT_COMMAND" envSeparator:" "`
}

// Readiness configures how the dependency services are awaited.
type Readiness struct {
	Mode           readiness.Mode `json:"mode" env:"MODE"`
	Grace          Duration       `json:"grace" env:"GRACE"`
	Timeout        Duration       `json:"timeout" env:"TIMEOUT"`
	Interval       Duration       `json:"interval" env:"INTERVAL"`
	AttemptTimeout Duration       `json:"attemptTimeout" env:"ATTEMPT_TIMEOUT"`
	BreakerOpenFor Duration       `json:"breakerOpenFor" env:"BREAKER_OPEN_FOR"`

	// PostgresDSN and RedisURL are host-side addresses of the dependency
	// services, e.g. readiness.DefaultPostgresDSN when compose publishes
	// the default ports. Empty disables the corresponding probe.
	PostgresDSN string `json:"postgresDSN" env:"POSTGRES_DSN"`
	RedisURL    string `json:"redisURL" env:"REDIS_URL"`

	// ContainerChecks adds a Docker state/health probe per dependency and,
	// for dependencies without a healthcheck, an in-container check such as
	// pg_isready.
	ContainerChecks bool `json:"containerChecks" env:"CONTAINER_CHECKS"`
}

// Duration is a time.Duration that reads Go duration strings ("90s") from
// both JSON and environment variables.
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// UnmarshalJSON accepts a duration string or a number of seconds.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return d.UnmarshalText([]byte(s))
	}
	var secs float64
	if err := json.Unmarshal(data, &secs); err != nil {
		return fmt.Errorf("duration must be a string like \"30s\" or a number of seconds")
	}
	*d = Duration(secs * float64(time.Second))
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		ComposeCommand: []string{"docker-compose"},
		CheckDaemon:    true,
		LogFormat:      "text",
		Services: Services{
			Dependencies: []string{"postgres", "redis"},
			App:          "api",
			InitCommand:  []string{"python", "scripts/init_db.py"},
		},
		Readiness: Readiness{
			Mode:            readiness.ModePoll,
			Grace:           Duration(readiness.DefaultGrace),
			Timeout:         Duration(readiness.DefaultTimeout),
			Interval:        Duration(readiness.DefaultInterval),
			AttemptTimeout:  Duration(readiness.DefaultAttemptTimeout),
			BreakerOpenFor:  Duration(10 * time.Second),
			ContainerChecks: true,
		},
	}
}

// Load builds the configuration for projectDir. When path is empty the
// project's FileName is used if present; an explicit path must exist.
// Every failure is a *model.CLIError with ExitConfigError.
func Load(projectDir, path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = filepath.Join(projectDir, FileName)
	}
	if err := cfg.mergeFile(path, explicit); err != nil {
		return nil, err
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, model.WrapCLIError(model.ExitConfigError, "invalid environment configuration", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, model.WrapCLIError(model.ExitConfigError, "invalid configuration", err)
	}
	return cfg, nil
}

// mergeFile overlays the JSONC file at path onto cfg. Keys absent from the
// file keep their current values.
func (c *Config) mergeFile(path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !required {
			return nil
		}
		return model.WrapCLIError(model.ExitConfigError, fmt.Sprintf("failed to read config file %s", path), err)
	}
	if err := json.Unmarshal(jsonc.ToJSON(data), c); err != nil {
		return model.WrapCLIError(model.ExitConfigError, fmt.Sprintf("failed to parse config file %s", path), err)
	}
	return nil
}

// Validate rejects settings the bootstrap cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if len(c.ComposeCommand) == 0 || strings.TrimSpace(c.ComposeCommand[0]) == "" {
		errs = append(errs, errors.New("composeCommand must not be empty"))
	}
	if c.ComposeFile != "" {
		if err := model.ValidateRelativePath(filepath.ToSlash(c.ComposeFile)); err != nil {
			errs = append(errs, fmt.Errorf("composeFile: %w", err))
		}
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("logFormat %q must be \"text\" or \"json\"", c.LogFormat))
	}
	if len(c.Services.Dependencies) == 0 {
		errs = append(errs, errors.New("services.dependencies must not be empty"))
	}
	if c.Services.App == "" {
		errs = append(errs, errors.New("services.app must not be empty"))
	}
	if len(c.Services.InitCommand) == 0 {
		errs = append(errs, errors.New("services.initCommand must not be empty"))
	}

	r := c.Readiness
	if !r.Mode.IsValid() {
		errs = append(errs, fmt.Errorf("readiness.mode %q must be %q or %q", r.Mode, readiness.ModePoll, readiness.ModeSleep))
	}
	if r.Mode == readiness.ModePoll && !r.ContainerChecks && r.PostgresDSN == "" && r.RedisURL == "" {
		errs = append(errs, errors.New("readiness.mode \"poll\" needs containerChecks, postgresDSN or redisURL"))
	}
	for name, d := range map[string]Duration{
		"grace":          r.Grace,
		"timeout":        r.Timeout,
		"interval":       r.Interval,
		"attemptTimeout": r.AttemptTimeout,
		"breakerOpenFor": r.BreakerOpenFor,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("readiness.%s must be positive", name))
		}
	}
	return errors.Join(errs...)
}

// ComposeProject returns the project name compose will use in projectDir,
// following compose's own precedence: the -p flag (ProjectName), then
// COMPOSE_PROJECT_NAME from the process environment or the project's .env
// file, then the compose file's top-level name, then the directory name.
// file may be nil.
func (c *Config) ComposeProject(projectDir string, file *docker.ComposeFile) string {
	if c.ProjectName != "" {
		return c.ProjectName
	}
	if name := os.Getenv("COMPOSE_PROJECT_NAME"); name != "" {
		return name
	}
	if vars, err := godotenv.Read(filepath.Join(projectDir, ".env")); err == nil && vars["COMPOSE_PROJECT_NAME"] != "" {
		return vars["COMPOSE_PROJECT_NAME"]
	}
	if file != nil && file.Name != "" {
		return file.Name
	}
	return docker.NormalizeProjectName(filepath.Base(projectDir))
}

// BreakerWindow is how long a tripped probe breaker stays open: at most
// two poll intervals, so a dependency that comes up is noticed within one
// skipped attempt.
func (r Readiness) BreakerWindow() time.Duration {
	return min(r.BreakerOpenFor.Std(), 2*r.Interval.Std())
}

// ComposeFilePath returns the absolute path of the configured compose file,
// or "" when compose picks the file itself.
func (c *Config) ComposeFilePath(projectDir string) string {
	if c.ComposeFile == "" {
		return ""
	}
	return filepath.Join(projectDir, filepath.FromSlash(c.ComposeFile))
}
