package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"todolist/internal/config"
	"todolist/internal/dialog"
	"todolist/internal/exitcode"
	"todolist/internal/service"
	"todolist/internal/store"
)

const editUsage = "todolist edit [common flags] [-d <text>] [-p <priority>] <key>"

func init() {
	Register(&EditCmd{})
}

// EditCmd implements the edit command. The stored record prefills the
// edit session and flags override individual fields.
type EditCmd struct {
	description string
	prio        priorityFlags
}

func (c *EditCmd) Name() string       { return "edit" }
func (c *EditCmd) Aliases() []string  { return []string{"update"} }
func (c *EditCmd) Synopsis() string   { return "Change a task's description or priority" }
func (c *EditCmd) Usage() string      { return editUsage }
func (c *EditCmd) NeedsBackend() bool { return true }

func (c *EditCmd) RegisterFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&c.description, "description", "d", "", "")
	c.prio.register(fs)
}

func (c *EditCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	if len(args) != 1 {
		fmt.Fprintln(errOut, "error: edit requires exactly one task key")
		return exitcode.UserError
	}
	key := args[0]

	prio, prioSet, err := c.prio.resolve()
	if err != nil {
		fmt.Fprintf(errOut, "error: %s\n", err)
		return exitcode.UserError
	}

	rt := newRuntime(cfg, svc, errOut)
	defer rt.close()

	if err := rt.start(ctx, cfg); err != nil {
		return reportError(errOut, err)
	}

	loaded := make(chan bool, 1)
	s := rt.ctrl.OpenEdit(key, func(_ *dialog.Session, found bool) {
		loaded <- found
	})

	var found bool
	select {
	case found = <-loaded:
	case <-ctx.Done():
		s.Cancel()
		return reportError(errOut, ctx.Err())
	}
	if !found {
		if errs := rt.errors(); len(errs) > 0 {
			return reportError(errOut, errs[0])
		}
		return reportError(errOut, fmt.Errorf("%w: %s", store.ErrNotFound, key))
	}

	if c.description != "" {
		s.SetDescription(c.description)
	}
	if prioSet {
		s.SetChecked(prio, true)
	}

	if _, err := rt.ctrl.Commit(s); err != nil {
		printFieldErrors(errOut, s.Errors())
		return exitcode.UserError
	}
	rt.sync.Wait()

	if errs := rt.errors(); len(errs) > 0 {
		return reportError(errOut, errs[0])
	}

	if !cfg.Quiet {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}
