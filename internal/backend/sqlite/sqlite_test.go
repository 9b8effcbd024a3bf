package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"todolist/internal/task"
)

func openStore(t *testing.T, path string) *Store {
	t.Helper()
	s, err := Open(context.Background(), path, WithPollInterval(20*time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func waitFor(t *testing.T, ch <-chan []task.Entry, n int) []task.Entry {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case e := <-ch:
			if len(e) == n {
				return e
			}
		case <-deadline:
			t.Fatalf("timed out waiting for snapshot with %d tasks", n)
			return nil
		}
	}
}

func TestCRUD(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, filepath.Join(t.TempDir(), "tasks.sqlite"))

	require.NoError(t, s.Set(ctx, "0", task.NewRecord("Buy milk", task.PriorityHigh)))
	rec, found, err := s.Get(ctx, "0")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, task.NewRecord("Buy milk", task.PriorityHigh), rec)

	require.NoError(t, s.Update(ctx, "0", "Buy oat milk", task.PriorityLow))
	rec, _, _ = s.Get(ctx, "0")
	require.Equal(t, "Buy oat milk", rec.Description)
	require.Equal(t, task.PriorityLow, rec.Priority)

	require.NoError(t, s.Update(ctx, "1", "created by update", task.PriorityMedium))
	_, found, _ = s.Get(ctx, "1")
	require.True(t, found)

	require.NoError(t, s.Delete(ctx, "0"))
	require.NoError(t, s.Delete(ctx, "0"))
	_, found, err = s.Get(ctx, "0")
	require.NoError(t, err)
	require.False(t, found)
}

func TestSubscribe_OrdersKeysNumerically(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, filepath.Join(t.TempDir(), "tasks.sqlite"))

	ch := make(chan []task.Entry, 20)
	sub, err := s.Subscribe(ctx, func(e []task.Entry) { ch <- e }, nil)
	require.NoError(t, err)
	defer sub.Unsubscribe()
	waitFor(t, ch, 0)

	for _, k := range []string{"10", "9", "0"} {
		require.NoError(t, s.Set(ctx, k, task.NewRecord("t"+k, task.PriorityMedium)))
	}
	got := waitFor(t, ch, 3)
	require.Equal(t, []string{"0", "9", "10"}, []string{got[0].Key, got[1].Key, got[2].Key})
}

func TestSubscribe_SeesOtherConnections(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tasks.sqlite")
	watcher := openStore(t, path)
	writer := openStore(t, path)

	ch := make(chan []task.Entry, 20)
	sub, err := watcher.Subscribe(ctx, func(e []task.Entry) { ch <- e }, nil)
	require.NoError(t, err)
	defer sub.Unsubscribe()
	waitFor(t, ch, 0)

	require.NoError(t, writer.Set(ctx, "0", task.NewRecord("from elsewhere", task.PriorityHigh)))
	got := waitFor(t, ch, 1)
	require.Equal(t, "from elsewhere", got[0].Record.Description)
}

func TestClosed(t *testing.T) {
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "tasks.sqlite"))
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	require.ErrorIs(t, s.Set(context.Background(), "0", task.Record{}), ErrClosed)
}
