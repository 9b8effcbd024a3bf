package realtime

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"todolist/internal/logging"
	"todolist/internal/service"
	"todolist/internal/task"
)

const (
	// APITimeout is the timeout for one HTTP call.
	APITimeout = 5 * time.Second

	// DefaultRetryInterval is the pause between subscription reconnects.
	DefaultRetryInterval = 2 * time.Second
)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// WithRetryInterval sets the reconnect pause.
func WithRetryInterval(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.retry = d
		}
	}
}

// WithClientLogger sets the logger.
func WithClientLogger(l *log.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// Client implements service.Service against a realtime Server.
type Client struct {
	base   *url.URL
	http   *http.Client
	dialer *websocket.Dialer
	logger *log.Logger
	retry  time.Duration
}

// NewClient returns a client for the server at serverURL (http or https).
func NewClient(serverURL string, opts ...ClientOption) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(serverURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid server url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid server url: unsupported scheme %q", base.Scheme)
	}
	c := &Client{
		base:   base,
		http:   &http.Client{},
		dialer: websocket.DefaultDialer,
		logger: logging.Discard(),
		retry:  DefaultRetryInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// HealthURL is the URL the connectivity probe should hit.
func (c *Client) HealthURL() string {
	return c.base.JoinPath(PathHealth).String()
}

func (c *Client) taskURL(key string) string {
	return c.base.JoinPath(PathTasks, url.PathEscape(key)).String()
}

func (c *Client) subscribeURL() string {
	u := c.base.JoinPath(PathSubscribe)
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	return u.String()
}

// Get implements service.Service.
func (c *Client) Get(ctx context.Context, key string) (task.Record, bool, error) {
	resp, err := c.do(ctx, http.MethodGet, c.taskURL(key), nil)
	if err != nil {
		return task.Record{}, false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var rec task.Record
		if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
			return task.Record{}, false, fmt.Errorf("invalid response: %w", err)
		}
		return rec, true, nil
	case http.StatusNotFound:
		return task.Record{}, false, nil
	default:
		return task.Record{}, false, statusError(resp)
	}
}

// Set implements service.Service.
func (c *Client) Set(ctx context.Context, key string, rec task.Record) error {
	return c.write(ctx, http.MethodPut, key, rec)
}

// Update implements service.Service.
func (c *Client) Update(ctx context.Context, key, description string, priority task.Priority) error {
	return c.write(ctx, http.MethodPatch, key, task.NewRecord(description, priority))
}

// Delete implements service.Service.
func (c *Client) Delete(ctx context.Context, key string) error {
	resp, err := c.do(ctx, http.MethodDelete, c.taskURL(key), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusNotFound {
		return nil
	}
	return statusError(resp)
}

func (c *Client) write(ctx context.Context, method, key string, rec task.Record) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	resp, err := c.do(ctx, method, c.taskURL(key), body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, u string, body []byte) (*http.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)

	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, r)
	if err != nil {
		cancel()
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		cancel()
		return nil, wrapError(err)
	}
	resp.Body = &cancelBody{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// cancelBody releases the request context when the body is closed.
type cancelBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

// Subscribe implements service.Service. The connection is re-established
// after every failure; each failed attempt is reported to onError.
func (c *Client) Subscribe(ctx context.Context, onChange func([]task.Entry), onError func(error)) (service.Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.connectAndSyncContinuously(ctx, onChange, onError)
	}()

	var once sync.Once
	return service.SubscriptionFunc(func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}), nil
}

func (c *Client) connectAndSyncContinuously(ctx context.Context, onChange func([]task.Entry), onError func(error)) {
	for {
		err := c.connectAndSync(ctx, onChange)
		if ctx.Err() != nil {
			c.logger.Debug("stopping subscription")
			return
		}
		if err != nil {
			c.logger.Warn("subscription failed", "err", err)
			if onError != nil {
				onError(err)
			}
		}

		t := time.NewTimer(c.retry)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return
		}
	}
}

func (c *Client) connectAndSync(ctx context.Context, onChange func([]task.Entry)) error {
	conn, _, err := c.dialer.DialContext(ctx, c.subscribeURL(), nil)
	if err != nil {
		return fmt.Errorf("failed to dial: %w", wrapError(err))
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	c.logger.Debug("subscription connected", "url", c.subscribeURL())
	for {
		var frame Frame
		if err := conn.ReadJSON(&frame); err != nil {
			return fmt.Errorf("failed to read frame: %w", err)
		}
		switch frame.Type {
		case FrameSnapshot:
			onChange(fromWire(frame.Tasks))
		case FrameError:
			return fmt.Errorf("server error: %s", frame.Error)
		default:
			c.logger.Debug("ignoring frame", "type", frame.Type)
		}
	}
}

// Close implements service.Service.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

func statusError(resp *http.Response) error {
	var body errorBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Error != "" {
		return fmt.Errorf("server returned %s: %s", resp.Status, body.Error)
	}
	return fmt.Errorf("server returned %s", resp.Status)
}

// wrapError wraps transport errors with user-friendly messages.
func wrapError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("request timed out: %w", err)
	}
	return err
}
