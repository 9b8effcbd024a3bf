// Package commands provides the command interface and implementations.
package commands

import (
	"context"
	"io"

	"github.com/spf13/pflag"

	"todolist/internal/config"
	"todolist/internal/service"
)

// Command defines the interface for CLI commands.
type Command interface {
	// Name returns the primary command name.
	Name() string

	// Aliases returns alternative names for the command.
	Aliases() []string

	// Synopsis returns a short description for help output.
	Synopsis() string

	// Usage returns the usage string for help output.
	Usage() string

	// NeedsBackend returns true if the command talks to the task collection.
	// Commands like help, version, config, login, logout return false.
	NeedsBackend() bool

	// RegisterFlags registers command-specific flags.
	RegisterFlags(fs *pflag.FlagSet)

	// Run executes the command.
	// cfg is always provided.
	// svc is nil if NeedsBackend() returns false.
	// args contains positional arguments after flag parsing.
	// Returns exit code.
	Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int
}

// LogRouter is implemented by commands that own the terminal. The
// dispatcher opens the returned writer before the backend starts and
// closes it after the run, and every logger of the run writes to it.
type LogRouter interface {
	OpenLog(cfg *config.Config) (w io.Writer, closeLog func() error, err error)
}

// BackendSelector is implemented by commands that always run against a
// particular backend, regardless of configuration.
type BackendSelector interface {
	Backend() string
}
