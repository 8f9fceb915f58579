package model

import (
	"fmt"
	"strings"
	"time"
)

// ExitCode defines the CLI exit codes. They allow scripts and CI systems to
// tell which stage of the bootstrap failed.
type ExitCode int

const (
	// ExitSuccess indicates the pipeline completed successfully.
	ExitSuccess ExitCode = 0

	// ExitGeneralError indicates an unspecified error occurred.
	ExitGeneralError ExitCode = 1

	// ExitMissingTool indicates a required host tool is not installed.
	ExitMissingTool ExitCode = 2

	// ExitFilesystemError indicates a directory or file could not be created.
	ExitFilesystemError ExitCode = 3

	// ExitDockerNotRunning indicates the Docker daemon is not accessible.
	ExitDockerNotRunning ExitCode = 4

	// ExitOrchestrationFailed is used for a failed container platform step
	// whose own exit status is unknown (e.g., the command could not start).
	ExitOrchestrationFailed ExitCode = 5

	// ExitReadinessTimeout indicates dependency services never became ready.
	ExitReadinessTimeout ExitCode = 6

	// ExitConfigError indicates the bootstrap configuration is invalid.
	ExitConfigError ExitCode = 7

	// ExitInterrupted indicates the run was cancelled by SIGINT or SIGTERM.
	ExitInterrupted ExitCode = 130
)

// ExitCoder is implemented by errors that know which exit code the process
// should terminate with.
type ExitCoder interface {
	error
	ExitCode() ExitCode
}

// CLIError is a generic error type that carries an exit code.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error returns the message, optionally including the underlying error.
func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// ExitCode satisfies ExitCoder.
func (e *CLIError) ExitCode() ExitCode {
	return e.Code
}

// WrapCLIError creates a new CLIError that wraps an existing error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}

// MissingToolError reports a required tool that could not be resolved on
// the execution path. It is fatal: no partial setup is attempted.
type MissingToolError struct {
	// Tool is the requirement that failed to resolve.
	Tool ToolRequirement

	// Err is the lookup failure, if any.
	Err error
}

// Error returns the remediation message "X is not installed. Please install X first."
func (e *MissingToolError) Error() string {
	name := e.Tool.String()
	return fmt.Sprintf("%s is not installed. Please install %s first.", name, name)
}

// Unwrap returns the lookup failure.
func (e *MissingToolError) Unwrap() error {
	return e.Err
}

// ExitCode satisfies ExitCoder.
func (e *MissingToolError) ExitCode() ExitCode {
	return ExitMissingTool
}

// FilesystemError reports a directory or file creation failure. These are
// not retried.
type FilesystemError struct {
	// Path is the absolute path that could not be created.
	Path string

	// Op names the failed operation (e.g., "mkdir", "create", "write").
	Op string

	// Err is the underlying cause (permission denied, disk full, ...).
	Err error
}

// Error includes the operation, path, and cause.
func (e *FilesystemError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying cause.
func (e *FilesystemError) Unwrap() error {
	return e.Err
}

// ExitCode satisfies ExitCoder.
func (e *FilesystemError) ExitCode() ExitCode {
	return ExitFilesystemError
}

// OrchestrationStepError reports a container platform step that failed.
// Output carries the tool's own diagnostic output verbatim.
type OrchestrationStepError struct {
	// Step is the failed step kind.
	Step StepKind

	// Command is the full command line that was executed, if any.
	Command []string

	// ExitStatus is the tool's exit status, or -1 when it never ran.
	ExitStatus int

	// Output is the combined stdout/stderr of the tool.
	Output string

	// Err is the underlying error.
	Err error
}

// Error returns a one-line cause. The verbatim tool output has already been
// streamed to the operator and is kept in Output.
func (e *OrchestrationStepError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s step failed", e.Step)
	if len(e.Command) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(e.Command, " "))
	}
	if e.ExitStatus > 0 {
		fmt.Fprintf(&b, " with exit status %d", e.ExitStatus)
	}
	if e.Err != nil && e.ExitStatus <= 0 {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *OrchestrationStepError) Unwrap() error {
	return e.Err
}

// ExitCode propagates the tool's exit status when it is known.
func (e *OrchestrationStepError) ExitCode() ExitCode {
	if e.ExitStatus > 0 && e.ExitStatus < 256 {
		return ExitCode(e.ExitStatus)
	}
	return ExitOrchestrationFailed
}

// TimeoutError reports that a bounded wait expired before the awaited
// condition held.
type TimeoutError struct {
	// What describes the awaited condition (e.g., "dependency services ready").
	What string

	// Waited is how long the wait ran before giving up.
	Waited time.Duration

	// Last is the most recent failure observed before giving up.
	Last error
}

// Error includes the last observed failure.
func (e *TimeoutError) Error() string {
	if e.Last != nil {
		return fmt.Sprintf("timed out after %s waiting for %s: %v", e.Waited, e.What, e.Last)
	}
	return fmt.Sprintf("timed out after %s waiting for %s", e.Waited, e.What)
}

// Unwrap returns the last observed failure.
func (e *TimeoutError) Unwrap() error {
	return e.Last
}

// ExitCode satisfies ExitCoder.
func (e *TimeoutError) ExitCode() ExitCode {
	return ExitReadinessTimeout
}
