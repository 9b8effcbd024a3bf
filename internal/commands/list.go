package commands

import (
	"context"
	"io"

	"github.com/spf13/pflag"

	"todolist/internal/config"
	"todolist/internal/exitcode"
	"todolist/internal/output"
	"todolist/internal/service"
)

func init() {
	Register(&ListCmd{})
}

// ListCmd implements the list command.
// Handles both `todolist` (no args) and `todolist list`.
type ListCmd struct{}

func (c *ListCmd) Name() string       { return "list" }
func (c *ListCmd) Aliases() []string  { return []string{"ls"} }
func (c *ListCmd) Synopsis() string   { return "List tasks" }
func (c *ListCmd) Usage() string      { return "todolist list [common flags]" }
func (c *ListCmd) NeedsBackend() bool { return true }

func (c *ListCmd) RegisterFlags(fs *pflag.FlagSet) {}

func (c *ListCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	rt := newRuntime(cfg, svc, errOut)
	defer rt.close()

	if err := rt.start(ctx, cfg); err != nil {
		return reportError(errOut, err)
	}

	rows := rt.ctrl.Rows()
	if len(rows) == 0 && cfg.Quiet {
		return exitcode.Success
	}
	output.FormatRows(out, output.NewStyles(out), rows)
	return exitcode.Success
}
