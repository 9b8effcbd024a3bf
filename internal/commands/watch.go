package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"todolist/internal/config"
	"todolist/internal/exitcode"
	"todolist/internal/output"
	"todolist/internal/projection"
	"todolist/internal/service"
)

// snapshotSeparator is printed between two consecutive listings.
const snapshotSeparator = "------------"

func init() {
	Register(&WatchCmd{})
}

// WatchCmd implements the watch command. It prints the list after every
// snapshot until interrupted.
type WatchCmd struct{}

func (c *WatchCmd) Name() string       { return "watch" }
func (c *WatchCmd) Aliases() []string  { return nil }
func (c *WatchCmd) Synopsis() string   { return "Print the list on every change" }
func (c *WatchCmd) Usage() string      { return "todolist watch [common flags]" }
func (c *WatchCmd) NeedsBackend() bool { return true }

func (c *WatchCmd) RegisterFlags(fs *pflag.FlagSet) {}

func (c *WatchCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	rt := newRuntime(cfg, svc, errOut)
	defer rt.close()

	styles := output.NewStyles(out)
	printed := 0
	// Listeners run on the dispatcher goroutine, one at a time.
	rt.ctrl.OnRows(func(rows []projection.Row) {
		if printed > 0 {
			fmt.Fprintln(out, snapshotSeparator)
		}
		output.FormatRows(out, styles, rows)
		printed++
	})

	if err := rt.start(ctx, cfg); err != nil {
		return reportError(errOut, err)
	}

	<-ctx.Done()
	return exitcode.Success
}
