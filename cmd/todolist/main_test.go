package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"todolist/internal/config"
	"todolist/internal/task"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestNewService_BackendLogsFollowConfig(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	down := ts.URL
	ts.Close()

	cfg, err := config.New(t.TempDir())
	require.NoError(t, err)
	cfg.Backend = config.BackendRealtime
	cfg.ServerURL = down
	logs := &syncBuffer{}
	cfg.LogOutput = logs

	svc, err := newService(context.Background(), cfg)
	require.NoError(t, err)
	defer svc.Close()

	sub, err := svc.Subscribe(context.Background(), func([]task.Entry) {}, nil)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	require.Eventually(t, func() bool {
		return strings.Contains(logs.String(), "subscription failed")
	}, 3*time.Second, 10*time.Millisecond)
}

func TestNewService_UnknownBackend(t *testing.T) {
	cfg, err := config.New(t.TempDir())
	require.NoError(t, err)
	cfg.Backend = "carrier-pigeon"

	_, err = newService(context.Background(), cfg)
	require.ErrorContains(t, err, "unknown backend: carrier-pigeon")
}
