// Package googletasks implements the service.Service interface using Google Tasks API.
//
// The collection is one Google Tasks list. Each task's title is the
// description; its notes carry the key and priority.
package googletasks

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	tasks "google.golang.org/api/tasks/v1"

	"todolist/internal/config"
	"todolist/internal/logging"
	"todolist/internal/service"
	"todolist/internal/task"
)

const (
	// PageSize is the number of tasks per page.
	PageSize = 100

	// APITimeout is the timeout for API calls.
	APITimeout = 5 * time.Second

	// Scope is the OAuth scope for Google Tasks.
	Scope = "https://www.googleapis.com/auth/tasks"

	// notesPrefix marks tasks owned by this collection.
	notesPrefix = "todolist:"
)

// Client implements service.Service using Google Tasks API.
type Client struct {
	svc          *tasks.Service
	listName     string
	pollInterval time.Duration
	logger       *log.Logger

	mu     sync.Mutex
	listID string
}

// New creates a new Google Tasks client.
// Requires oauth_client.json and token.json to exist.
func New(ctx context.Context, cfg *config.Config, logger *log.Logger) (*Client, error) {
	clientJSON, err := os.ReadFile(cfg.OAuthClientPath())
	if err != nil {
		return nil, fmt.Errorf("failed to read oauth_client.json: %w", err)
	}

	oauthConfig, err := google.ConfigFromJSON(clientJSON, Scope)
	if err != nil {
		return nil, fmt.Errorf("invalid oauth_client.json: %w", err)
	}

	tokenData, err := os.ReadFile(cfg.TokenPath())
	if err != nil {
		return nil, fmt.Errorf("failed to read token.json: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(tokenData, &token); err != nil {
		return nil, fmt.Errorf("invalid token.json: %w", err)
	}

	// Token source refreshes automatically.
	httpClient := oauth2.NewClient(ctx, oauthConfig.TokenSource(ctx, &token))

	svc, err := tasks.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create tasks service: %w", err)
	}
	return newClient(svc, cfg.ListName, cfg.PollInterval, logger), nil
}

// NewWithHTTPClient creates a client with a custom HTTP client and endpoint (for testing).
func NewWithHTTPClient(ctx context.Context, httpClient *http.Client, endpoint, listName string, pollInterval time.Duration) (*Client, error) {
	svc, err := tasks.NewService(ctx, option.WithHTTPClient(httpClient), option.WithEndpoint(endpoint))
	if err != nil {
		return nil, err
	}
	return newClient(svc, listName, pollInterval, nil), nil
}

func newClient(svc *tasks.Service, listName string, pollInterval time.Duration, logger *log.Logger) *Client {
	if logger == nil {
		logger = logging.Discard()
	}
	if pollInterval <= 0 {
		pollInterval = config.DefaultPollInterval
	}
	return &Client{
		svc:          svc,
		listName:     listName,
		pollInterval: pollInterval,
		logger:       logger,
	}
}

// remoteTask pairs a decoded entry with the Google task id holding it.
type remoteTask struct {
	id    string
	entry task.Entry
}

// resolveList finds the list by name (case-insensitive, trimmed), creating
// it when missing. The id is cached for the life of the client.
func (c *Client) resolveList(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.listID != "" {
		return c.listID, nil
	}

	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	want := strings.ToLower(strings.TrimSpace(c.listName))
	var found string
	err := c.svc.Tasklists.List().MaxResults(100).Pages(ctx, func(resp *tasks.TaskLists) error {
		for _, list := range resp.Items {
			if found == "" && strings.ToLower(strings.TrimSpace(list.Title)) == want {
				found = list.Id
			}
		}
		return nil
	})
	if err != nil {
		return "", wrapError(err)
	}

	if found == "" {
		created, err := c.svc.Tasklists.Insert(&tasks.TaskList{Title: c.listName}).Context(ctx).Do()
		if err != nil {
			return "", wrapError(err)
		}
		found = created.Id
		c.logger.Info("created task list", "name", c.listName)
	}
	c.listID = found
	return found, nil
}

// fetchAll returns every task in the list that carries a key, in key order.
func (c *Client) fetchAll(ctx context.Context) ([]remoteTask, error) {
	listID, err := c.resolveList(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	var result []remoteTask
	err = c.svc.Tasks.List(listID).
		MaxResults(PageSize).
		ShowCompleted(false).
		ShowDeleted(false).
		ShowHidden(false).
		Pages(ctx, func(resp *tasks.Tasks) error {
			for _, t := range resp.Items {
				key, priority, ok := decodeNotes(t.Notes)
				if !ok {
					c.logger.Debug("skipping foreign task", "id", t.Id, "title", t.Title)
					continue
				}
				result = append(result, remoteTask{
					id:    t.Id,
					entry: task.Entry{Key: key, Record: task.NewRecord(t.Title, priority)},
				})
			}
			return nil
		})
	if err != nil {
		return nil, wrapError(err)
	}

	slices.SortFunc(result, func(a, b remoteTask) int {
		return task.CompareKeys(a.entry.Key, b.entry.Key)
	})
	return result, nil
}

func (c *Client) find(ctx context.Context, key string) (listID string, t *remoteTask, err error) {
	all, err := c.fetchAll(ctx)
	if err != nil {
		return "", nil, err
	}
	listID, err = c.resolveList(ctx)
	if err != nil {
		return "", nil, err
	}
	for i := range all {
		if all[i].entry.Key == key {
			return listID, &all[i], nil
		}
	}
	return listID, nil, nil
}

// Get implements service.Service.
func (c *Client) Get(ctx context.Context, key string) (task.Record, bool, error) {
	_, t, err := c.find(ctx, key)
	if err != nil || t == nil {
		return task.Record{}, false, err
	}
	return t.entry.Record, true, nil
}

// Set implements service.Service. An existing task is replaced in full.
func (c *Client) Set(ctx context.Context, key string, rec task.Record) error {
	listID, t, err := c.find(ctx, key)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	body := &tasks.Task{Title: rec.Description, Notes: encodeNotes(key, rec.Priority)}
	if t == nil {
		_, err = c.svc.Tasks.Insert(listID, body).Context(ctx).Do()
	} else {
		body.Id = t.id
		body.Status = "needsAction"
		_, err = c.svc.Tasks.Update(listID, t.id, body).Context(ctx).Do()
	}
	return wrapError(err)
}

// Update implements service.Service. Only the title and notes are patched.
func (c *Client) Update(ctx context.Context, key, description string, priority task.Priority) error {
	listID, t, err := c.find(ctx, key)
	if err != nil {
		return err
	}
	if t == nil {
		return c.Set(ctx, key, task.NewRecord(description, priority))
	}

	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	_, err = c.svc.Tasks.Patch(listID, t.id, &tasks.Task{
		Title: description,
		Notes: encodeNotes(key, priority),
	}).Context(ctx).Do()
	return wrapError(err)
}

// Delete implements service.Service.
func (c *Client) Delete(ctx context.Context, key string) error {
	listID, t, err := c.find(ctx, key)
	if err != nil || t == nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	err = c.svc.Tasks.Delete(listID, t.id).Context(ctx).Do()
	if err != nil && isNotFound(err) {
		return nil
	}
	return wrapError(err)
}

// Subscribe implements service.Service by polling. The first poll always
// delivers; later polls deliver only when the collection changed.
func (c *Client) Subscribe(ctx context.Context, onChange func([]task.Entry), onError func(error)) (service.Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		var last []task.Entry
		first := true

		poll := func() {
			all, err := c.fetchAll(ctx)
			if err != nil {
				if ctx.Err() == nil && onError != nil {
					onError(err)
				}
				return
			}
			entries := make([]task.Entry, len(all))
			for i, t := range all {
				entries[i] = t.entry
			}
			if first || !slices.Equal(entries, last) {
				first = false
				last = entries
				onChange(entries)
			}
		}

		poll()
		t := time.NewTicker(c.pollInterval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				poll()
			case <-ctx.Done():
				return
			}
		}
	}()

	var once sync.Once
	return service.SubscriptionFunc(func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}), nil
}

// Close implements service.Service.
func (c *Client) Close() error {
	return nil
}

type notesPayload struct {
	Key      string        `json:"key"`
	Priority task.Priority `json:"priority"`
}

func encodeNotes(key string, p task.Priority) string {
	data, _ := json.Marshal(notesPayload{Key: key, Priority: p})
	return notesPrefix + string(data)
}

func decodeNotes(notes string) (key string, p task.Priority, ok bool) {
	rest, found := strings.CutPrefix(strings.TrimSpace(notes), notesPrefix)
	if !found {
		return "", 0, false
	}
	var payload notesPayload
	if err := json.Unmarshal([]byte(rest), &payload); err != nil || payload.Key == "" || !payload.Priority.Valid() {
		return "", 0, false
	}
	return payload.Key, payload.Priority, true
}

// ErrAuth marks failures fixed by logging in again.
var ErrAuth = fmt.Errorf("%w: token expired or revoked (run: todolist login)", service.ErrUnauthorized)

func isNotFound(err error) bool {
	return strings.Contains(err.Error(), "404")
}

// wrapError wraps API errors with user-friendly messages.
func wrapError(err error) error {
	if err == nil {
		return nil
	}

	errStr := err.Error()

	if strings.Contains(errStr, "context deadline exceeded") {
		return fmt.Errorf("request timed out")
	}

	if strings.Contains(errStr, "401") || strings.Contains(errStr, "403") {
		return ErrAuth
	}

	if strings.Contains(errStr, "404") {
		return fmt.Errorf("not found")
	}

	return err
}
