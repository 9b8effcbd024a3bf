package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"todolist/internal/config"
	"todolist/internal/exitcode"
	"todolist/internal/service"
	"todolist/internal/store"
)

func init() {
	Register(&RmCmd{})
}

// RmCmd implements the rm command. Every known key is marked in the
// selection and the whole selection is deleted at once. Unknown keys are
// reported without stopping the others.
type RmCmd struct{}

func (c *RmCmd) Name() string       { return "rm" }
func (c *RmCmd) Aliases() []string  { return []string{"delete"} }
func (c *RmCmd) Synopsis() string   { return "Delete tasks" }
func (c *RmCmd) Usage() string      { return "todolist rm [common flags] <key...>" }
func (c *RmCmd) NeedsBackend() bool { return true }

func (c *RmCmd) RegisterFlags(fs *pflag.FlagSet) {}

func (c *RmCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "error: rm requires at least one task key")
		return exitcode.UserError
	}

	rt := newRuntime(cfg, svc, errOut)
	defer rt.close()

	if err := rt.start(ctx, cfg); err != nil {
		return reportError(errOut, err)
	}

	var missing []string
	for _, key := range args {
		if _, err := rt.ctrl.Lookup(key); err != nil {
			missing = append(missing, key)
			continue
		}
		if !rt.ctrl.IsSelected(key) {
			rt.ctrl.Toggle(key)
		}
	}

	n := 0
	if len(missing) < len(args) {
		n = rt.ctrl.DeleteSelected()
		rt.sync.Wait()
	}

	// Every key reports on its own; print them all.
	code := exitcode.Success
	for _, key := range missing {
		code = reportError(errOut, fmt.Errorf("%w: %s", store.ErrNotFound, key))
	}
	for _, err := range rt.errors() {
		code = max(code, reportError(errOut, err))
	}
	if code != exitcode.Success {
		return code
	}
	rt.logger.Debug("tasks deleted", "count", n)

	if !cfg.Quiet {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}
