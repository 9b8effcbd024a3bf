package service

import (
	"sync"

	"todolist/internal/task"
)

// Feed delivers snapshots to one subscriber, in push order, on a goroutine
// of its own so a slow subscriber never blocks the backend.
type Feed struct {
	onChange func([]task.Entry)

	mu      sync.Mutex
	pending [][]task.Entry
	wake    chan struct{}
	done    chan struct{}
	once    sync.Once
}

// NewFeed starts a feed that calls onChange for every pushed snapshot.
func NewFeed(onChange func([]task.Entry)) *Feed {
	f := &Feed{
		onChange: onChange,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	go f.run()
	return f
}

// Push queues a copy of snapshot for delivery. Pushing after Stop is a no-op.
func (f *Feed) Push(snapshot []task.Entry) {
	cp := make([]task.Entry, len(snapshot))
	copy(cp, snapshot)

	f.mu.Lock()
	select {
	case <-f.done:
		f.mu.Unlock()
		return
	default:
	}
	f.pending = append(f.pending, cp)
	f.mu.Unlock()

	select {
	case f.wake <- struct{}{}:
	default:
	}
}

// Stop ends delivery. Snapshots still queued are dropped.
func (f *Feed) Stop() {
	f.once.Do(func() { close(f.done) })
}

// Done is closed once the feed has been stopped.
func (f *Feed) Done() <-chan struct{} {
	return f.done
}

func (f *Feed) run() {
	for {
		select {
		case <-f.done:
			return
		case <-f.wake:
		}

		for {
			f.mu.Lock()
			if len(f.pending) == 0 {
				f.mu.Unlock()
				break
			}
			next := f.pending[0]
			f.pending = f.pending[1:]
			f.mu.Unlock()

			select {
			case <-f.done:
				return
			default:
			}
			f.onChange(next)
		}
	}
}
