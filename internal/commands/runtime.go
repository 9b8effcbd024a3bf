package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"todolist/internal/app"
	"todolist/internal/config"
	"todolist/internal/connectivity"
	"todolist/internal/exitcode"
	"todolist/internal/logging"
	"todolist/internal/remote"
	"todolist/internal/service"
	"todolist/internal/store"
	"todolist/internal/task"
)

// SnapshotTimeout bounds how long a command waits for the first snapshot.
var SnapshotTimeout = 10 * time.Second

// googleProbeURL answers any request when the Google API is reachable.
const googleProbeURL = "https://tasks.googleapis.com/"

// NewLogger returns the logger for one run. Logs go to cfg.LogOutput when
// set and to fallback otherwise, so they never mix with command output.
func NewLogger(cfg *config.Config, fallback io.Writer) *log.Logger {
	level := cfg.LogLevel
	if cfg.Debug {
		level = "debug"
	}
	w := cfg.LogOutput
	if w == nil {
		w = fallback
	}
	return logging.New(w, logging.Options{Level: level, Format: cfg.LogFormat})
}

// newChecker returns the connectivity gate for the configured backend.
func newChecker(cfg *config.Config) connectivity.Checker {
	switch cfg.Backend {
	case config.BackendRealtime:
		return &connectivity.HTTPProbe{
			URL:       strings.TrimRight(cfg.ServerURL, "/") + "/healthz",
			RequireOK: true,
		}
	case config.BackendGoogleTasks:
		return &connectivity.HTTPProbe{URL: googleProbeURL, Method: http.MethodHead}
	default:
		return connectivity.Always{}
	}
}

// runtime bundles the sync layer and controller for one command run.
type runtime struct {
	sync   *remote.Sync
	ctrl   *app.Controller
	logger *log.Logger

	mu   sync.Mutex
	errs []error
}

func newRuntime(cfg *config.Config, svc service.Service, errOut io.Writer) *runtime {
	logger := NewLogger(cfg, errOut)
	s := remote.New(svc, logger)
	rt := &runtime{
		sync:   s,
		ctrl:   app.New(s, logger),
		logger: logger,
	}
	rt.ctrl.OnError(rt.record)
	return rt
}

func (rt *runtime) record(err error) {
	rt.mu.Lock()
	rt.errs = append(rt.errs, err)
	rt.mu.Unlock()
}

// errors returns every remote failure recorded so far.
func (rt *runtime) errors() []error {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return append([]error(nil), rt.errs...)
}

// start runs the connectivity gate and waits for the first snapshot. A
// subscription failure before the first snapshot ends the wait.
func (rt *runtime) start(ctx context.Context, cfg *config.Config) error {
	first := make(chan error, 1)
	rt.ctrl.OnError(func(err error) {
		select {
		case first <- err:
		default:
		}
	})

	if err := rt.ctrl.Start(ctx, newChecker(cfg)); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, SnapshotTimeout)
	defer cancel()
	ready := make(chan error, 1)
	go func() { ready <- rt.ctrl.WaitReady(ctx) }()

	select {
	case err := <-ready:
		if err != nil {
			return fmt.Errorf("timed out waiting for tasks: %w", err)
		}
		return nil
	case err := <-first:
		return err
	}
}

// close flushes in-flight remote calls and stops the sync layer.
func (rt *runtime) close() {
	rt.ctrl.Stop()
	rt.sync.Wait()
	rt.sync.Close()
}

// fetch reads one record through the sync layer and waits for the result.
func (rt *runtime) fetch(ctx context.Context, key string) (task.Record, bool, error) {
	type result struct {
		rec   task.Record
		found bool
		err   error
	}
	ch := make(chan result, 1)
	rt.sync.FetchOnce(key,
		func(rec task.Record, found bool) { ch <- result{rec: rec, found: found} },
		func(err error) { ch <- result{err: err} },
	)
	select {
	case r := <-ch:
		return r.rec, r.found, r.err
	case <-ctx.Done():
		return task.Record{}, false, ctx.Err()
	}
}

// reportError prints err and returns the matching exit code.
func reportError(errOut io.Writer, err error) int {
	switch {
	case errors.Is(err, connectivity.ErrOffline):
		fmt.Fprintf(errOut, "error: %s\n", connectivity.ErrOffline)
		return exitcode.BackendError
	case errors.Is(err, store.ErrNotFound), errors.Is(err, app.ErrInvalidTask):
		fmt.Fprintf(errOut, "error: %s\n", err)
		return exitcode.UserError
	case errors.Is(err, service.ErrUnauthorized):
		fmt.Fprintf(errOut, "error: auth error: %s\n", err)
		return exitcode.AuthError
	default:
		fmt.Fprintf(errOut, "error: backend error: %s\n", err)
		return exitcode.BackendError
	}
}

// priorityFlags registers the priority options shared by add and edit.
type priorityFlags struct {
	name              string
	high, medium, low bool
}

func (p *priorityFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&p.name, "priority", "p", "", "")
	fs.BoolVar(&p.high, "high", false, "")
	fs.BoolVar(&p.medium, "medium", false, "")
	fs.BoolVar(&p.low, "low", false, "")
}

// resolve returns the chosen priority. set is false when no priority
// option was given. --priority wins over the boolean options.
func (p *priorityFlags) resolve() (prio task.Priority, set bool, err error) {
	if p.name != "" {
		prio, err := task.ParsePriority(p.name)
		if err != nil {
			return task.PriorityNone, false, err
		}
		return prio, true, nil
	}
	prio = task.PriorityFromSelection(p.high, p.medium, p.low)
	return prio, prio != task.PriorityNone, nil
}
