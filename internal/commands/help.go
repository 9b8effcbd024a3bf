package commands

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"todolist/internal/config"
	"todolist/internal/exitcode"
	"todolist/internal/service"
)

func init() {
	Register(&HelpCmd{})
}

// HelpCmd implements the help command. The command list is built from the
// default registry so new commands show up without edits here.
type HelpCmd struct{}

func (c *HelpCmd) Name() string       { return "help" }
func (c *HelpCmd) Aliases() []string  { return nil }
func (c *HelpCmd) Synopsis() string   { return "Print usage" }
func (c *HelpCmd) Usage() string      { return "todolist help [command]" }
func (c *HelpCmd) NeedsBackend() bool { return false }

func (c *HelpCmd) RegisterFlags(fs *pflag.FlagSet) {}

func (c *HelpCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	if len(args) > 0 {
		cmd, ok := DefaultRegistry.Find(args[0])
		if !ok {
			fmt.Fprintf(errOut, "error: unknown command: %s\n", args[0])
			return exitcode.UserError
		}
		fmt.Fprintf(out, "Usage: %s\n\n%s\n", cmd.Usage(), cmd.Synopsis())
		return exitcode.Success
	}

	fmt.Fprintln(out, "Usage:")
	fmt.Fprintln(out, "  todolist                 List tasks")
	fmt.Fprintln(out, "  todolist <command> [flags] [args]")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Commands:")
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, cmd := range DefaultRegistry.All() {
		fmt.Fprintf(tw, "  %s\t%s\n", cmd.Name(), cmd.Synopsis())
	}
	tw.Flush()
	fmt.Fprint(out, helpFooter)
	return exitcode.Success
}

const helpFooter = `
Priority flags (add, edit):
  -p, --priority <p>  high|h|1, medium|med|m|2, low|l|3
  --high, --medium, --low

Common flags:
  --config <dir>      Override config directory
  --backend <name>    realtime, sqlite, memory or googletasks
  --server <url>      Realtime server URL
  --quiet             Suppress informational output
  --debug             Print debug logs to stderr
`
