// Package testutil provides testing utilities.
package testutil

import (
	"context"
	"slices"
	"sync"

	"todolist/internal/backend/memory"
	"todolist/internal/service"
	"todolist/internal/task"
)

// FakeService is an in-memory implementation of service.Service for testing.
// It delegates to a memory.Store and lets tests inject failures per method.
type FakeService struct {
	store *memory.Store

	mu       sync.Mutex
	onErrors []func(error)
	calls    []string

	// Error injection for testing
	SubscribeErr error
	GetErr       error
	SetErr       error
	UpdateErr    error
	DeleteErr    map[string]error // key -> error
	CloseErr     error

	// BeforeGet, when set, runs at the start of every Get.
	BeforeGet func(key string)
}

// NewFakeService creates an empty FakeService.
func NewFakeService() *FakeService {
	return &FakeService{
		store:     memory.New(),
		DeleteErr: make(map[string]error),
	}
}

// AddTask seeds a task without notifying subscribers.
func (f *FakeService) AddTask(key, description string, priority task.Priority) {
	f.store.Seed(task.Entry{Key: key, Record: task.NewRecord(description, priority)})
}

// Snapshot returns the current collection in order.
func (f *FakeService) Snapshot() []task.Entry {
	return f.store.Snapshot()
}

// Calls returns the recorded method calls, e.g. "set 0" or "delete 3".
func (f *FakeService) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// FailSubscriptions sends err to every live subscription's onError.
func (f *FakeService) FailSubscriptions(err error) {
	f.mu.Lock()
	handlers := slices.Clone(f.onErrors)
	f.mu.Unlock()
	for _, h := range handlers {
		h(err)
	}
}

func (f *FakeService) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

// Subscribe implements service.Service.
func (f *FakeService) Subscribe(ctx context.Context, onChange func([]task.Entry), onError func(error)) (service.Subscription, error) {
	f.record("subscribe")
	if f.SubscribeErr != nil {
		return nil, f.SubscribeErr
	}
	f.mu.Lock()
	f.onErrors = append(f.onErrors, onError)
	f.mu.Unlock()
	return f.store.Subscribe(ctx, onChange, onError)
}

// Get implements service.Service.
func (f *FakeService) Get(ctx context.Context, key string) (task.Record, bool, error) {
	f.record("get " + key)
	if f.BeforeGet != nil {
		f.BeforeGet(key)
	}
	if f.GetErr != nil {
		return task.Record{}, false, f.GetErr
	}
	return f.store.Get(ctx, key)
}

// Set implements service.Service.
func (f *FakeService) Set(ctx context.Context, key string, rec task.Record) error {
	f.record("set " + key)
	if f.SetErr != nil {
		return f.SetErr
	}
	return f.store.Set(ctx, key, rec)
}

// Update implements service.Service.
func (f *FakeService) Update(ctx context.Context, key, description string, priority task.Priority) error {
	f.record("update " + key)
	if f.UpdateErr != nil {
		return f.UpdateErr
	}
	return f.store.Update(ctx, key, description, priority)
}

// Delete implements service.Service.
func (f *FakeService) Delete(ctx context.Context, key string) error {
	f.record("delete " + key)
	f.mu.Lock()
	err := f.DeleteErr[key]
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.store.Delete(ctx, key)
}

// Close implements service.Service.
func (f *FakeService) Close() error {
	if f.CloseErr != nil {
		return f.CloseErr
	}
	return f.store.Close()
}
