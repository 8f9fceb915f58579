// Package model defines the domain types and value objects for the
// mcp-bootstrap CLI.
//
// This package contains pure data structures with no external dependencies.
// Every entity (ToolRequirement, DirectorySpec, PackageMarker,
// ConfigTemplate, ServiceStep) describes an external artifact on the
// filesystem or the container platform. Nothing here is persisted between
// runs: idempotency is achieved by checking existence before acting.
//
// The package also defines exit codes (ExitCode), the generic CLIError, and
// the bootstrap error taxonomy (MissingToolError, FilesystemError,
// OrchestrationStepError, TimeoutError). Each of them reports its own exit
// code so the CLI layer can translate it into a process exit status.
package model
