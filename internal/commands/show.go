package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"todolist/internal/config"
	"todolist/internal/exitcode"
	"todolist/internal/output"
	"todolist/internal/service"
	"todolist/internal/store"
)

func init() {
	Register(&ShowCmd{})
}

// ShowCmd implements the show command. It reads one record directly
// without subscribing to the collection.
type ShowCmd struct{}

func (c *ShowCmd) Name() string       { return "show" }
func (c *ShowCmd) Aliases() []string  { return []string{"get"} }
func (c *ShowCmd) Synopsis() string   { return "Show one task" }
func (c *ShowCmd) Usage() string      { return "todolist show [common flags] <key>" }
func (c *ShowCmd) NeedsBackend() bool { return true }

func (c *ShowCmd) RegisterFlags(fs *pflag.FlagSet) {}

func (c *ShowCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	if len(args) != 1 {
		fmt.Fprintln(errOut, "error: show requires exactly one task key")
		return exitcode.UserError
	}
	key := args[0]

	if err := newChecker(cfg).Check(ctx); err != nil {
		return reportError(errOut, err)
	}

	rt := newRuntime(cfg, svc, errOut)
	defer rt.close()

	rec, found, err := rt.fetch(ctx, key)
	if err != nil {
		return reportError(errOut, err)
	}
	if !found {
		return reportError(errOut, fmt.Errorf("%w: %s", store.ErrNotFound, key))
	}

	output.FormatRecord(out, output.NewStyles(out), key, rec)
	return exitcode.Success
}
