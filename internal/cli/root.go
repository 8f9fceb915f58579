// Package cli implements the cobra root command of mcp-bootstrap.
//
// The command takes no arguments: running it performs the whole bootstrap
// of the code analyzer development environment. This file defines the
// command, its flags, and the translation of errors into exit codes; the
// wiring of the pipeline lives in bootstrap.go.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/mcp-bootstrap/internal/docker"
	"github.com/mmr-tortoise/mcp-bootstrap/internal/model"
)

// Version, Commit, and Date are set from the main package, which receives
// them via ldflags at build time.
var (
	// Version is the semantic version of the binary (e.g., "1.0.0").
	Version = "dev"

	// Commit is the Git commit hash the binary was built from.
	Commit = "none"

	// Date is the build timestamp.
	Date = "unknown"
)

// options holds the flag values of one invocation.
type options struct {
	dir        string
	configPath string
	jsonOutput bool
	verbose    bool
}

// dockerEngine is the part of the Docker API the bootstrap needs: a daemon
// ping for the prerequisite stage and container state for readiness.
type dockerEngine interface {
	Ping(ctx context.Context) error
	ServiceContainers(ctx context.Context, project, service string) ([]model.ContainerInfo, error)
	Close() error
}

// environment carries the process-level collaborators. Tests replace them
// to run the command without Docker.
type environment struct {
	stdout    io.Writer
	stderr    io.Writer
	lookPath  func(string) (string, error)
	runner    docker.Runner
	newEngine func(host string) dockerEngine
}

func defaultEnvironment() *environment {
	return &environment{
		stdout:   os.Stdout,
		stderr:   os.Stderr,
		lookPath: exec.LookPath,
		newEngine: func(host string) dockerEngine {
			return docker.NewLazyClient(host)
		},
	}
}

// NewRootCommand creates the mcp-bootstrap command.
func NewRootCommand() *cobra.Command {
	return newRootCommand(defaultEnvironment())
}

func newRootCommand(env *environment) *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "mcp-bootstrap",
		Short: "Set up the MCP Code Analyzer development environment",
		Long: `mcp-bootstrap prepares a fresh checkout of the MCP Code Analyzer for
local development. It checks that Docker and Docker Compose are installed,
creates the source and data directory skeleton, writes default .env and
.gitignore files when they are missing, builds the images, starts the
database and cache services, and initializes the database.

Every step is safe to repeat: existing directories and files are kept
as they are.`,
		Args: cobra.NoArgs,

		// Errors are printed by Execute in text or JSON form.
		SilenceUsage:  true,
		SilenceErrors: true,

		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date),

		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBootstrap(cmd.Context(), env, opts)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.dir, "dir", "", "Project root (default: the Git top level of the working directory)")
	flags.StringVar(&opts.configPath, "config", "", "Config file (default: <project root>/.mcp-bootstrap.jsonc if present)")
	flags.BoolVar(&opts.jsonOutput, "json", false, "Print the bootstrap report and errors as JSON")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose output")

	return rootCmd
}

// Execute runs the root command and exits the process with the code that
// matches the outcome. SIGINT and SIGTERM cancel the run.
func Execute(rootCmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, rootCmd, os.Stderr)
	stop()
	os.Exit(int(code))
}

func execute(ctx context.Context, rootCmd *cobra.Command, stderr io.Writer) model.ExitCode {
	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return model.ExitSuccess
	}

	code := exitCode(err)
	if ctx.Err() != nil {
		// A killed child reports its own status; the signal takes precedence.
		code = model.ExitInterrupted
	}
	jsonOutput, _ := rootCmd.PersistentFlags().GetBool("json")
	printError(stderr, err, code, jsonOutput)
	return code
}

// exitCode maps err to the process exit code. Errors that know their code
// carry it; a cancelled context means the run was interrupted.
func exitCode(err error) model.ExitCode {
	if err == nil {
		return model.ExitSuccess
	}
	var coder model.ExitCoder
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	if errors.Is(err, context.Canceled) {
		return model.ExitInterrupted
	}
	return model.ExitGeneralError
}

// printError writes err to w as "Error: <message>" or, with --json, as a
// JSON object. A failed compose step contributes its captured output to
// the JSON form; in text form that output was already streamed.
func printError(w io.Writer, err error, code model.ExitCode, jsonOutput bool) {
	message, detail := err.Error(), ""
	var cliErr *model.CLIError
	if errors.As(err, &cliErr) && cliErr.Err != nil {
		message, detail = cliErr.Message, cliErr.Err.Error()
	}

	if !jsonOutput {
		if detail != "" {
			fmt.Fprintf(w, "Error: %s: %s\n", message, detail)
		} else {
			fmt.Fprintf(w, "Error: %s\n", message)
		}
		return
	}

	errObj := map[string]interface{}{
		"message":  message,
		"exitCode": int(code),
	}
	if detail != "" {
		errObj["detail"] = detail
	}
	var stepErr *model.OrchestrationStepError
	if errors.As(err, &stepErr) {
		errObj["step"] = stepErr.Step.String()
		if stepErr.Output != "" {
			errObj["output"] = stepErr.Output
		}
	}
	data, _ := json.MarshalIndent(map[string]interface{}{"error": errObj}, "", "  ")
	fmt.Fprintln(w, string(data))
}
