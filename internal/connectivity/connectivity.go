// Package connectivity decides whether the remote collection is reachable
// before the first subscription is made.
package connectivity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrOffline is returned when the remote collection cannot be reached.
var ErrOffline = errors.New("no network connection")

// DefaultTimeout bounds a single probe.
const DefaultTimeout = 3 * time.Second

// Checker reports whether the remote is reachable. A nil error means online.
type Checker interface {
	Check(ctx context.Context) error
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context) error

// Check calls f.
func (f CheckerFunc) Check(ctx context.Context) error { return f(ctx) }

// Always is a Checker for local backends that is always online.
type Always struct{}

// Check implements Checker.
func (Always) Check(context.Context) error { return nil }

// HTTPProbe checks reachability with a single HTTP request.
type HTTPProbe struct {
	URL     string
	Method  string // defaults to GET
	Client  *http.Client
	Timeout time.Duration

	// RequireOK treats any non-2xx status as offline. Without it, any
	// response at all proves the network path works.
	RequireOK bool
}

// Check implements Checker. Failures wrap ErrOffline.
func (p *HTTPProbe) Check(ctx context.Context) error {
	timeout := p.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	method := p.Method
	if method == "" {
		method = http.MethodGet
	}
	req, err := http.NewRequestWithContext(ctx, method, p.URL, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOffline, err)
	}

	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOffline, err)
	}
	resp.Body.Close()

	if p.RequireOK && (resp.StatusCode < 200 || resp.StatusCode > 299) {
		return fmt.Errorf("%w: %s returned %s", ErrOffline, p.URL, resp.Status)
	}
	return nil
}
