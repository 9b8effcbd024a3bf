package service

import (
	"testing"
	"time"

	"todolist/internal/task"
)

func TestFeed_DeliversInOrder(t *testing.T) {
	got := make(chan string, 10)
	f := NewFeed(func(entries []task.Entry) {
		got <- entries[0].Key
	})
	defer f.Stop()

	for _, k := range []string{"0", "1", "2"} {
		f.Push([]task.Entry{{Key: k}})
	}

	for _, want := range []string{"0", "1", "2"} {
		select {
		case k := <-got:
			if k != want {
				t.Fatalf("expected %q, got %q", want, k)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %q", want)
		}
	}
}

func TestFeed_PushAfterStopIsDropped(t *testing.T) {
	calls := make(chan struct{}, 1)
	f := NewFeed(func([]task.Entry) { calls <- struct{}{} })
	f.Stop()
	f.Stop()
	f.Push(nil)

	select {
	case <-calls:
		t.Fatal("expected no delivery after Stop")
	case <-time.After(50 * time.Millisecond):
	}
}
