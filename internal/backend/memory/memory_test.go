package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"todolist/internal/task"
)

func waitSnapshot(t *testing.T, ch <-chan []task.Entry) []task.Entry {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return nil
	}
}

func TestSubscribe_InitialSnapshotThenChanges(t *testing.T) {
	ctx := context.Background()
	s := New()
	defer s.Close()
	s.Seed(task.Entry{Key: "0", Record: task.NewRecord("Buy milk", task.PriorityHigh)})

	ch := make(chan []task.Entry, 10)
	sub, err := s.Subscribe(ctx, func(e []task.Entry) { ch <- e }, func(error) {})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer sub.Unsubscribe()

	first := waitSnapshot(t, ch)
	if len(first) != 1 || first[0].Key != "0" {
		t.Fatalf("unexpected initial snapshot: %+v", first)
	}

	if err := s.Set(ctx, "1", task.NewRecord("Walk dog", task.PriorityLow)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second := waitSnapshot(t, ch)
	want := []task.Entry{
		{Key: "0", Record: task.NewRecord("Buy milk", task.PriorityHigh)},
		{Key: "1", Record: task.NewRecord("Walk dog", task.PriorityLow)},
	}
	if diff := cmp.Diff(want, second); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestSet_UnchangedRecordDoesNotNotify(t *testing.T) {
	ctx := context.Background()
	s := New()
	defer s.Close()
	rec := task.NewRecord("a", task.PriorityMedium)
	s.Seed(task.Entry{Key: "0", Record: rec})

	ch := make(chan []task.Entry, 10)
	sub, _ := s.Subscribe(ctx, func(e []task.Entry) { ch <- e }, func(error) {})
	defer sub.Unsubscribe()
	waitSnapshot(t, ch)

	if err := s.Set(ctx, "0", rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	select {
	case got := <-ch:
		t.Errorf("expected no notification, got %+v", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDelete_AbsentKeyIsNotAnError(t *testing.T) {
	s := New()
	defer s.Close()
	if err := s.Delete(context.Background(), "missing"); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestGet(t *testing.T) {
	ctx := context.Background()
	s := New()
	defer s.Close()
	s.Seed(task.Entry{Key: "3", Record: task.NewRecord("x", task.PriorityLow)})

	rec, found, err := s.Get(ctx, "3")
	if err != nil || !found || rec.Description != "x" {
		t.Errorf("expected x/found, got %+v %v %v", rec, found, err)
	}
	_, found, err = s.Get(ctx, "4")
	if err != nil || found {
		t.Errorf("expected not found, got %v %v", found, err)
	}
}

func TestSubscribe_CancelledContextUnsubscribes(t *testing.T) {
	s := New()
	defer s.Close()
	ctx, cancel := context.WithCancel(context.Background())

	ch := make(chan []task.Entry, 10)
	if _, err := s.Subscribe(ctx, func(e []task.Entry) { ch <- e }, func(error) {}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitSnapshot(t, ch)
	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for {
		s.mu.Lock()
		n := len(s.feeds)
		s.mu.Unlock()
		if n == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("subscription still registered after cancel")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestClosed(t *testing.T) {
	s := New()
	s.Close()
	if err := s.Set(context.Background(), "0", task.Record{}); err != ErrClosed {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if _, err := s.Subscribe(context.Background(), func([]task.Entry) {}, nil); err != ErrClosed {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}
