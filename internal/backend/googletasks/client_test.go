package googletasks

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	tasks "google.golang.org/api/tasks/v1"

	"todolist/internal/service"
	"todolist/internal/task"
)

// fakeAPI is a minimal in-memory Google Tasks endpoint.
type fakeAPI struct {
	mu     sync.Mutex
	lists  []*tasks.TaskList
	tasks  map[string][]*tasks.Task // list id -> tasks
	nextID int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{tasks: make(map[string][]*tasks.Task)}
}

func (f *fakeAPI) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s%d", prefix, f.nextID)
}

func (f *fakeAPI) listTitles() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var titles []string
	for _, l := range f.lists {
		titles = append(titles, l.Title)
	}
	return titles
}

func (f *fakeAPI) addTask(listID string, t *tasks.Task) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks[listID] = append(f.tasks[listID], t)
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /tasks/v1/users/@me/lists", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(tasks.TaskLists{Items: f.lists})
	})
	mux.HandleFunc("POST /tasks/v1/users/@me/lists", func(w http.ResponseWriter, r *http.Request) {
		var l tasks.TaskList
		_ = json.NewDecoder(r.Body).Decode(&l)
		f.mu.Lock()
		defer f.mu.Unlock()
		l.Id = f.id("list")
		f.lists = append(f.lists, &l)
		_ = json.NewEncoder(w).Encode(l)
	})
	mux.HandleFunc("GET /tasks/v1/lists/{list}/tasks", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(tasks.Tasks{Items: f.tasks[r.PathValue("list")]})
	})
	mux.HandleFunc("POST /tasks/v1/lists/{list}/tasks", func(w http.ResponseWriter, r *http.Request) {
		var t tasks.Task
		_ = json.NewDecoder(r.Body).Decode(&t)
		f.mu.Lock()
		defer f.mu.Unlock()
		t.Id = f.id("task")
		list := r.PathValue("list")
		f.tasks[list] = append(f.tasks[list], &t)
		_ = json.NewEncoder(w).Encode(t)
	})
	update := func(w http.ResponseWriter, r *http.Request) {
		var body tasks.Task
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		defer f.mu.Unlock()
		for _, t := range f.tasks[r.PathValue("list")] {
			if t.Id == r.PathValue("task") {
				t.Title = body.Title
				t.Notes = body.Notes
				_ = json.NewEncoder(w).Encode(t)
				return
			}
		}
		http.Error(w, `{"error":{"code":404}}`, http.StatusNotFound)
	}
	mux.HandleFunc("PUT /tasks/v1/lists/{list}/tasks/{task}", update)
	mux.HandleFunc("PATCH /tasks/v1/lists/{list}/tasks/{task}", update)
	mux.HandleFunc("DELETE /tasks/v1/lists/{list}/tasks/{task}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		list := r.PathValue("list")
		for i, t := range f.tasks[list] {
			if t.Id == r.PathValue("task") {
				f.tasks[list] = append(f.tasks[list][:i], f.tasks[list][i+1:]...)
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		http.Error(w, `{"error":{"code":404}}`, http.StatusNotFound)
	})
	return mux
}

func newTestClient(t *testing.T) (*Client, *fakeAPI) {
	t.Helper()
	api := newFakeAPI()
	ts := httptest.NewServer(api.handler())
	t.Cleanup(ts.Close)

	c, err := NewWithHTTPClient(context.Background(), ts.Client(), ts.URL+"/", "Tasks", 20*time.Millisecond)
	require.NoError(t, err)
	return c, api
}

func TestNotesCodec(t *testing.T) {
	notes := encodeNotes("12", task.PriorityMedium)
	require.Equal(t, `todolist:{"key":"12","priority":2}`, notes)

	key, p, ok := decodeNotes(notes)
	require.True(t, ok)
	require.Equal(t, "12", key)
	require.Equal(t, task.PriorityMedium, p)

	for _, bad := range []string{"", "shopping list", `todolist:{"key":"","priority":1}`, `todolist:{"key":"1","priority":9}`} {
		_, _, ok := decodeNotes(bad)
		require.False(t, ok, "expected %q to be rejected", bad)
	}
}

func TestClient_CreatesListAndRoundTrips(t *testing.T) {
	ctx := context.Background()
	c, api := newTestClient(t)

	require.NoError(t, c.Set(ctx, "0", task.NewRecord("Buy milk", task.PriorityHigh)))
	require.Equal(t, []string{"Tasks"}, api.listTitles())

	rec, found, err := c.Get(ctx, "0")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, task.NewRecord("Buy milk", task.PriorityHigh), rec)

	require.NoError(t, c.Update(ctx, "0", "Buy bread", task.PriorityLow))
	rec, _, _ = c.Get(ctx, "0")
	require.Equal(t, task.NewRecord("Buy bread", task.PriorityLow), rec)

	require.NoError(t, c.Delete(ctx, "0"))
	require.NoError(t, c.Delete(ctx, "0"))
	_, found, err = c.Get(ctx, "0")
	require.NoError(t, err)
	require.False(t, found)
}

func TestClient_IgnoresForeignTasks(t *testing.T) {
	ctx := context.Background()
	c, api := newTestClient(t)
	listID, err := c.resolveList(ctx)
	require.NoError(t, err)
	api.addTask(listID, &tasks.Task{Id: "x", Title: "someone else's"})

	require.NoError(t, c.Set(ctx, "0", task.NewRecord("mine", task.PriorityLow)))
	all, err := c.fetchAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, "mine", all[0].entry.Record.Description)
}

func TestSubscribe_PollsForChanges(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t)

	ch := make(chan []task.Entry, 10)
	sub, err := c.Subscribe(ctx, func(e []task.Entry) { ch <- e }, nil)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	select {
	case e := <-ch:
		require.Empty(t, e)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for first poll")
	}

	require.NoError(t, c.Set(ctx, "0", task.NewRecord("a", task.PriorityHigh)))
	select {
	case e := <-ch:
		require.Len(t, e, 1)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for change")
	}
}

func TestWrapError(t *testing.T) {
	require.Nil(t, wrapError(nil))
	require.ErrorIs(t, wrapError(fmt.Errorf("googleapi: Error 401: bad creds")), ErrAuth)
	require.ErrorIs(t, wrapError(fmt.Errorf("googleapi: Error 403: forbidden")), service.ErrUnauthorized)
	require.EqualError(t, wrapError(fmt.Errorf("Get ...: context deadline exceeded")), "request timed out")
}
