package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"todolist/internal/backend/realtime"
	"todolist/internal/config"
	"todolist/internal/exitcode"
	"todolist/internal/service"
)

const serveUsage = "todolist serve [common flags] [--listen <addr>] [--store sqlite|memory]"

func init() {
	Register(&ServeCmd{})
}

// ServeCmd implements the serve command. It hosts the realtime collection
// over HTTP and websockets, backed by a local store.
type ServeCmd struct {
	listen string
	store  string
}

func (c *ServeCmd) Name() string       { return "serve" }
func (c *ServeCmd) Aliases() []string  { return nil }
func (c *ServeCmd) Synopsis() string   { return "Run the realtime task server" }
func (c *ServeCmd) Usage() string      { return serveUsage }
func (c *ServeCmd) NeedsBackend() bool { return true }

// Backend implements BackendSelector. The server never proxies another
// server, so the configured backend is replaced by the local store.
func (c *ServeCmd) Backend() string { return c.store }

func (c *ServeCmd) RegisterFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.listen, "listen", "", "")
	fs.StringVar(&c.store, "store", config.BackendSQLite, "")
}

func (c *ServeCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	if c.store != config.BackendSQLite && c.store != config.BackendMemory {
		fmt.Fprintf(errOut, "error: invalid store: %s (want sqlite or memory)\n", c.store)
		return exitcode.UserError
	}

	addr := cfg.Listen
	if c.listen != "" {
		addr = c.listen
	}

	logger := NewLogger(cfg, errOut)
	srv, err := realtime.NewServer(ctx, svc, logger)
	if err != nil {
		fmt.Fprintf(errOut, "error: backend error: %s\n", err)
		return exitcode.BackendError
	}
	defer srv.Close()

	if !cfg.Quiet {
		fmt.Fprintf(out, "listening on %s\n", addr)
	}
	if err := srv.ListenAndServe(ctx, addr); err != nil {
		fmt.Fprintf(errOut, "error: %s\n", err)
		return exitcode.BackendError
	}
	return exitcode.Success
}
