package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"todolist/internal/config"
	"todolist/internal/exitcode"
	"todolist/internal/service"
)

const configUsage = "todolist config [common flags] init [--force] | show | path"

func init() {
	Register(&ConfigCmd{})
}

// ConfigCmd implements the config command.
//
//	todolist config init [--force]  write config.toml with the current settings
//	todolist config show            print the effective settings as TOML
//	todolist config path            print the config.toml path
type ConfigCmd struct {
	force bool
}

func (c *ConfigCmd) Name() string       { return "config" }
func (c *ConfigCmd) Aliases() []string  { return nil }
func (c *ConfigCmd) Synopsis() string   { return "Manage config.toml" }
func (c *ConfigCmd) Usage() string      { return configUsage }
func (c *ConfigCmd) NeedsBackend() bool { return false }

func (c *ConfigCmd) RegisterFlags(fs *pflag.FlagSet) {
	fs.BoolVarP(&c.force, "force", "f", false, "")
}

func (c *ConfigCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	if len(args) != 1 {
		fmt.Fprintf(errOut, "error: usage: %s\n", c.Usage())
		return exitcode.UserError
	}

	switch args[0] {
	case "init":
		if err := cfg.WriteDefault(c.force); err != nil {
			fmt.Fprintf(errOut, "error: %s\n", err)
			return exitcode.UserError
		}
		if !cfg.Quiet {
			fmt.Fprintf(out, "wrote %s\n", cfg.FilePath())
		}
	case "show":
		if err := cfg.Encode(out); err != nil {
			fmt.Fprintf(errOut, "error: %s\n", err)
			return exitcode.UserError
		}
	case "path":
		fmt.Fprintln(out, cfg.FilePath())
	default:
		fmt.Fprintf(errOut, "error: unknown config action: %s\n", args[0])
		return exitcode.UserError
	}
	return exitcode.Success
}
