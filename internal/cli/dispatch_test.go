package cli_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"todolist/internal/cli"
	"todolist/internal/commands"
	"todolist/internal/config"
	"todolist/internal/exitcode"
	"todolist/internal/service"
	"todolist/internal/task"
	"todolist/internal/testutil"
)

// testFactory creates a service factory that returns the given FakeService
// and remembers the backend it was asked for.
func testFactory(svc *testutil.FakeService, backend *string) cli.ServiceFactory {
	return func(ctx context.Context, cfg *config.Config) (service.Service, error) {
		if backend != nil {
			*backend = cfg.Backend
		}
		return svc, nil
	}
}

// run dispatches args with an isolated config directory and the memory backend.
func run(t *testing.T, factory cli.ServiceFactory, args ...string) (stdout, stderr string, code int) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv(config.EnvBackend, config.BackendMemory)
	t.Setenv(config.EnvServer, "")

	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, factory)
	var outBuf, errBuf bytes.Buffer
	code = dispatcher.Run(context.Background(), args, &outBuf, &errBuf)
	return outBuf.String(), errBuf.String(), code
}

func TestDispatcher_UnknownCommand(t *testing.T) {
	_, stderr, code := run(t, testFactory(testutil.NewFakeService(), nil), "unknowncmd")

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	expected := "error: unknown command: unknowncmd\n"
	if stderr != expected {
		t.Errorf("expected %q, got %q", expected, stderr)
	}
}

func TestDispatcher_FlagBeforeCommand(t *testing.T) {
	_, stderr, code := run(t, testFactory(testutil.NewFakeService(), nil), "--quiet")

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	expected := "error: unknown command: --quiet\n"
	if stderr != expected {
		t.Errorf("expected %q, got %q", expected, stderr)
	}
}

func TestDispatcher_HelpCommand(t *testing.T) {
	stdout, stderr, code := run(t, nil, "help")

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}
	require.Contains(t, stdout, "Usage:")
}

func TestDispatcher_HelpFlag(t *testing.T) {
	stdout, _, code := run(t, nil, "add", "--help")

	require.Equal(t, exitcode.Success, code)
	require.Equal(t, "Usage: todolist add [common flags] [-p <priority>|--high|--medium|--low] <description...>\n", stdout)
}

func TestDispatcher_VersionCommand(t *testing.T) {
	stdout, stderr, code := run(t, nil, "version")

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}
	if stdout != "todolist 0.1.0\n" {
		t.Errorf("expected 'todolist 0.1.0\\n', got %q", stdout)
	}
}

func TestDispatcher_UnknownFlag(t *testing.T) {
	_, stderr, code := run(t, nil, "help", "--unknown")

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	expected := "error: unknown flag: --unknown\n"
	if stderr != expected {
		t.Errorf("expected %q, got %q", expected, stderr)
	}
}

func TestDispatcher_NoArgsLists(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.AddTask("0", "Buy milk", task.PriorityHigh)

	stdout, stderr, code := run(t, testFactory(svc, nil))

	require.Equal(t, exitcode.Success, code, stderr)
	require.Equal(t, "   0  high    Buy milk\n", stdout)
}

func TestDispatcher_Add(t *testing.T) {
	svc := testutil.NewFakeService()

	stdout, stderr, code := run(t, testFactory(svc, nil), "add", "--medium", "Walk", "dog")

	require.Equal(t, exitcode.Success, code, stderr)
	require.Equal(t, "ok\n", stdout)
	require.Equal(t, []task.Entry{{Key: "0", Record: task.NewRecord("Walk dog", task.PriorityMedium)}}, svc.Snapshot())
}

func TestDispatcher_BackendFlagOverridesEnv(t *testing.T) {
	var backend string
	_, stderr, code := run(t, testFactory(testutil.NewFakeService(), &backend), "show", "--backend", "sqlite", "0")

	require.Equal(t, exitcode.UserError, code, stderr)
	require.Equal(t, config.BackendSQLite, backend)
}

func TestDispatcher_InvalidBackend(t *testing.T) {
	_, stderr, code := run(t, nil, "list", "--backend", "carrier-pigeon")

	require.Equal(t, exitcode.AuthError, code)
	require.Equal(t, "error: invalid config: unknown backend: carrier-pigeon\n", stderr)
}

func TestDispatcher_BadConfigFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.ConfigFile), []byte("backend = [\n"), 0600))

	_, stderr, code := run(t, nil, "list", "--config", dir)

	require.Equal(t, exitcode.AuthError, code)
	require.Contains(t, stderr, "error: failed to read config.toml")
}

func TestDispatcher_FactoryErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		code   int
		stderr string
	}{
		{"auth", fmt.Errorf("%w: not logged in (run: todolist login)", cli.ErrAuth), exitcode.AuthError, "error: auth error: not logged in (run: todolist login)\n"},
		{"backend", errors.New("database is locked"), exitcode.BackendError, "error: backend error: database is locked\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			factory := func(ctx context.Context, cfg *config.Config) (service.Service, error) {
				return nil, tt.err
			}

			_, stderr, code := run(t, factory, "list")

			require.Equal(t, tt.code, code)
			require.Equal(t, tt.stderr, stderr)
		})
	}
}

func TestDispatcher_NoBackendForLocalCommands(t *testing.T) {
	called := false
	factory := func(ctx context.Context, cfg *config.Config) (service.Service, error) {
		called = true
		return nil, errors.New("unexpected")
	}

	_, _, code := run(t, factory, "config", "path")

	require.Equal(t, exitcode.Success, code)
	require.False(t, called)
}

func TestDispatcher_ServeSelectsStore(t *testing.T) {
	var backend string
	factory := testFactory(testutil.NewFakeService(), &backend)

	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv(config.EnvBackend, config.BackendRealtime)
	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, factory)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var outBuf, errBuf bytes.Buffer
	code := dispatcher.Run(ctx, []string{"serve", "--store", "memory", "--listen", "127.0.0.1:0"}, &outBuf, &errBuf)

	require.Equal(t, exitcode.Success, code, errBuf.String())
	require.Equal(t, config.BackendMemory, backend)
}

// loggingFactory logs a warning the way a failing backend does, then
// returns svc.
func loggingFactory(svc service.Service) cli.ServiceFactory {
	return func(ctx context.Context, cfg *config.Config) (service.Service, error) {
		commands.NewLogger(cfg, os.Stderr).Warn("subscription failed", "err", "connection refused")
		return svc, nil
	}
}

// screenCmd owns the terminal and keeps logs in its own buffer.
type screenCmd struct {
	logs   bytes.Buffer
	closed bool
}

func (c *screenCmd) Name() string                    { return "screen" }
func (c *screenCmd) Aliases() []string               { return nil }
func (c *screenCmd) Synopsis() string                { return "" }
func (c *screenCmd) Usage() string                   { return "todolist screen" }
func (c *screenCmd) NeedsBackend() bool              { return true }
func (c *screenCmd) RegisterFlags(fs *pflag.FlagSet) {}

func (c *screenCmd) OpenLog(cfg *config.Config) (io.Writer, func() error, error) {
	return &c.logs, func() error { c.closed = true; return nil }, nil
}

func (c *screenCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	commands.NewLogger(cfg, errOut).Warn("redrawing")
	return exitcode.Success
}

func TestDispatcher_LogRouterReceivesBackendLogs(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv(config.EnvBackend, config.BackendMemory)

	cmd := &screenCmd{}
	registry := commands.NewRegistry()
	require.NoError(t, registry.Register(cmd))
	dispatcher := cli.NewDispatcher(registry, loggingFactory(testutil.NewFakeService()))

	var outBuf, errBuf bytes.Buffer
	code := dispatcher.Run(context.Background(), []string{"screen"}, &outBuf, &errBuf)

	require.Equal(t, exitcode.Success, code)
	require.Empty(t, errBuf.String())
	require.Contains(t, cmd.logs.String(), "subscription failed")
	require.Contains(t, cmd.logs.String(), "redrawing")
	require.True(t, cmd.closed)
}

func TestDispatcher_BackendLogsGoToStderr(t *testing.T) {
	_, stderr, code := run(t, loggingFactory(testutil.NewFakeService()), "list", "--quiet")

	require.Equal(t, exitcode.Success, code)
	require.Contains(t, stderr, "subscription failed")
}

func TestDispatcher_UIKeepsBackendLogsOffScreen(t *testing.T) {
	factory := func(ctx context.Context, cfg *config.Config) (service.Service, error) {
		commands.NewLogger(cfg, os.Stderr).Warn("subscription failed", "err", "connection refused")
		return nil, fmt.Errorf("%w: token expired", cli.ErrAuth)
	}

	t.Run("dropped", func(t *testing.T) {
		_, stderr, code := run(t, factory, "ui")

		require.Equal(t, exitcode.AuthError, code)
		require.Equal(t, "error: auth error: token expired\n", stderr)
	})

	t.Run("debug log", func(t *testing.T) {
		dir := t.TempDir()
		_, stderr, code := run(t, factory, "ui", "--debug", "--config", dir)

		require.Equal(t, exitcode.AuthError, code)
		require.Equal(t, "error: auth error: token expired\n", stderr)
		data, err := os.ReadFile(filepath.Join(dir, "debug.log"))
		require.NoError(t, err)
		require.True(t, strings.Contains(string(data), "subscription failed"), string(data))
	})
}
