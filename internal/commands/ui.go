package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"todolist/internal/config"
	"todolist/internal/exitcode"
	"todolist/internal/output"
	"todolist/internal/service"
	"todolist/internal/tui"
)

// debugLogFile receives logs while the terminal UI owns the screen.
const debugLogFile = "debug.log"

func init() {
	Register(&UICmd{})
}

// UICmd implements the ui command.
type UICmd struct{}

func (c *UICmd) Name() string       { return "ui" }
func (c *UICmd) Aliases() []string  { return []string{"tui"} }
func (c *UICmd) Synopsis() string   { return "Open the interactive task list" }
func (c *UICmd) Usage() string      { return "todolist ui [common flags]" }
func (c *UICmd) NeedsBackend() bool { return true }

func (c *UICmd) RegisterFlags(fs *pflag.FlagSet) {}

// OpenLog implements LogRouter. Logs are dropped while the UI owns the
// screen unless --debug sends them to debug.log in the config directory.
func (c *UICmd) OpenLog(cfg *config.Config) (io.Writer, func() error, error) {
	if !cfg.Debug {
		return io.Discard, func() error { return nil }, nil
	}
	if err := cfg.EnsureDir(); err != nil {
		return nil, nil, fmt.Errorf("failed to create config directory: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(cfg.Dir, debugLogFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open debug log: %w", err)
	}
	return f, f.Close, nil
}

func (c *UICmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	if cfg.LogOutput == nil {
		w, closeLog, err := c.OpenLog(cfg)
		if err != nil {
			fmt.Fprintf(errOut, "error: %v\n", err)
			return exitcode.UserError
		}
		defer closeLog()
		cfg.LogOutput = w
	}

	rt := newRuntime(cfg, svc, errOut)
	defer rt.close()

	err := tui.Run(ctx, rt.ctrl, newChecker(cfg), output.NewStyles(out),
		tea.WithAltScreen(),
		tea.WithOutput(out),
	)
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.BackendError
	}
	return exitcode.Success
}
