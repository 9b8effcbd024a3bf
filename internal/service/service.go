// Package service defines the backend-agnostic interface to the remote task collection.
package service

import (
	"context"
	"errors"

	"todolist/internal/task"
)

// ErrUnauthorized is wrapped by backend errors that only logging in again
// can fix.
var ErrUnauthorized = errors.New("unauthorized")

// Service is the remote collection behind Tasks/<key>.
// All backend traffic goes through this interface; the sync layer and
// commands never import a backend SDK directly.
type Service interface {
	// Subscribe registers a persistent listener. onChange receives the full
	// collection, ordered by task.CompareKeys, once on subscribe and again
	// after every change. onError reports failures without ending the
	// subscription. The subscription lives until Unsubscribe or ctx is done.
	Subscribe(ctx context.Context, onChange func([]task.Entry), onError func(error)) (Subscription, error)

	// Get fetches one record. found is false when the key is absent.
	Get(ctx context.Context, key string) (rec task.Record, found bool, err error)

	// Set upserts the full record at key.
	Set(ctx context.Context, key string, rec task.Record) error

	// Update writes the description and priority fields at key,
	// creating the record if it does not exist.
	Update(ctx context.Context, key, description string, priority task.Priority) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// Subscription is a handle to a live Subscribe call.
type Subscription interface {
	// Unsubscribe stops delivery. It is safe to call more than once.
	Unsubscribe()
}

// SubscriptionFunc adapts a function to Subscription.
type SubscriptionFunc func()

// Unsubscribe calls f.
func (f SubscriptionFunc) Unsubscribe() { f() }
