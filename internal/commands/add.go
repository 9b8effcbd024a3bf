package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/pflag"

	"todolist/internal/config"
	"todolist/internal/dialog"
	"todolist/internal/exitcode"
	"todolist/internal/service"
	"todolist/internal/task"
)

const addUsage = "todolist add [common flags] [-p <priority>|--high|--medium|--low] <description...>"

func init() {
	Register(&AddCmd{})
}

// AddCmd implements the add command.
type AddCmd struct {
	prio priorityFlags
}

func (c *AddCmd) Name() string       { return "add" }
func (c *AddCmd) Aliases() []string  { return []string{"create"} }
func (c *AddCmd) Synopsis() string   { return "Add a task" }
func (c *AddCmd) Usage() string      { return addUsage }
func (c *AddCmd) NeedsBackend() bool { return true }

func (c *AddCmd) RegisterFlags(fs *pflag.FlagSet) {
	c.prio.register(fs)
}

func (c *AddCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	prio, _, err := c.prio.resolve()
	if err != nil {
		fmt.Fprintf(errOut, "error: %s\n", err)
		return exitcode.UserError
	}

	rt := newRuntime(cfg, svc, errOut)
	defer rt.close()

	s := rt.ctrl.OpenAdd()
	s.SetDescription(strings.Join(args, " "))
	if prio != task.PriorityNone {
		s.SetChecked(prio, true)
	}
	high, medium, low := s.Selection()
	if errs := dialog.Validate(s.Description(), high, medium, low); errs.Any() {
		printFieldErrors(errOut, errs)
		return exitcode.UserError
	}

	if err := rt.start(ctx, cfg); err != nil {
		return reportError(errOut, err)
	}

	key, err := rt.ctrl.Commit(s)
	if err != nil {
		return reportError(errOut, err)
	}
	rt.sync.Wait()

	if errs := rt.errors(); len(errs) > 0 {
		return reportError(errOut, errs[0])
	}
	rt.logger.Debug("task added", "key", key)

	if !cfg.Quiet {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}

// printFieldErrors prints one line per failed dialog field.
func printFieldErrors(errOut io.Writer, errs dialog.Errors) {
	if errs.Title != "" {
		fmt.Fprintf(errOut, "error: %s\n", errs.Title)
	}
	if errs.Priority != "" {
		fmt.Fprintf(errOut, "error: %s\n", errs.Priority)
	}
}
