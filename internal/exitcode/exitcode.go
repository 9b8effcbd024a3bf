// Package exitcode defines exit codes for the CLI.
package exitcode

// Process exit codes shared by every command.
const (
	// Success indicates successful completion.
	Success = 0

	// UserError indicates a user error (bad args, unknown key, invalid task).
	UserError = 1

	// AuthError indicates an auth or config error.
	AuthError = 2

	// BackendError indicates a remote, network or offline error.
	BackendError = 3
)
