package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/felixge/httpsnoop"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"todolist/internal/logging"
	"todolist/internal/service"
	"todolist/internal/task"
)

const (
	writeWait       = 10 * time.Second
	shutdownTimeout = 5 * time.Second
)

// Server exposes a service.Service over HTTP. Every websocket subscriber
// receives the full collection on connect and after each change.
type Server struct {
	svc       service.Service
	logger    *log.Logger
	validator *recordValidator
	router    *mux.Router
	upgrader  websocket.Upgrader

	mu      sync.Mutex
	latest  []task.Entry
	clients map[string]*wsClient
	sub     service.Subscription
}

type wsClient struct {
	id   string
	conn *websocket.Conn
	feed *service.Feed
}

// NewServer subscribes to svc and builds the router. The caller keeps
// ownership of svc.
func NewServer(ctx context.Context, svc service.Service, logger *log.Logger) (*Server, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	validator, err := newRecordValidator()
	if err != nil {
		return nil, err
	}
	s := &Server{
		svc:       svc,
		logger:    logger,
		validator: validator,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		clients: make(map[string]*wsClient),
	}

	r := mux.NewRouter()
	r.Use(s.logRequests)
	r.Methods(http.MethodGet).Path(PathHealth).HandlerFunc(s.health)
	r.Methods(http.MethodGet).Path(PathTasks).HandlerFunc(s.listTasks)
	r.Methods(http.MethodGet).Path(PathTasks + "/{key}").HandlerFunc(s.getTask)
	r.Methods(http.MethodPut).Path(PathTasks + "/{key}").HandlerFunc(s.putTask)
	r.Methods(http.MethodPatch).Path(PathTasks + "/{key}").HandlerFunc(s.patchTask)
	r.Methods(http.MethodDelete).Path(PathTasks + "/{key}").HandlerFunc(s.deleteTask)
	r.Methods(http.MethodGet).Path(PathSubscribe).HandlerFunc(s.subscribe)
	s.router = r

	sub, err := svc.Subscribe(ctx, s.broadcast, func(err error) {
		s.logger.Error("backing store subscription failed", "err", err)
	})
	if err != nil {
		return nil, err
	}
	s.sub = sub
	return s, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is done, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{Addr: addr, Handler: s.router}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := httpServer.Shutdown(shutdownCtx)
	s.Close()
	return err
}

// Close drops the backing subscription and disconnects every subscriber.
func (s *Server) Close() {
	s.mu.Lock()
	sub := s.sub
	s.sub = nil
	clients := make([]*wsClient, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
	for _, c := range clients {
		s.drop(c)
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)
		s.logger.Info("handled", "method", r.Method, "url", r.URL.String(), "duration", m.Duration, "status", m.Code)
	})
}

// broadcast records the latest snapshot and queues it for every subscriber.
func (s *Server) broadcast(entries []task.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = entries
	for _, c := range s.clients {
		c.feed.Push(entries)
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = io.WriteString(w, "ok\n")
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	entries := toWire(s.latest)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	rec, found, err := s.svc.Get(r.Context(), key)
	if err != nil {
		s.internalError(w, "get", key, err)
		return
	}
	if !found {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "task not found: " + key})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) putTask(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	rec, ok := s.readRecord(w, r)
	if !ok {
		return
	}
	if err := s.svc.Set(r.Context(), key, rec); err != nil {
		s.internalError(w, "set", key, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) patchTask(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	rec, ok := s.readRecord(w, r)
	if !ok {
		return
	}
	if err := s.svc.Update(r.Context(), key, rec.Description, rec.Priority); err != nil {
		s.internalError(w, "update", key, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) deleteTask(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	if err := s.svc.Delete(r.Context(), key); err != nil {
		s.internalError(w, "delete", key, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) readRecord(w http.ResponseWriter, r *http.Request) (task.Record, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: err.Error()})
		return task.Record{}, false
	}
	rec, err := s.validator.decode(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return task.Record{}, false
	}
	return rec, true
}

func (s *Server) subscribe(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("failed to upgrade", "err", err)
		return
	}

	c := &wsClient{id: uuid.NewString(), conn: conn}
	c.feed = service.NewFeed(func(entries []task.Entry) {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(Frame{Type: FrameSnapshot, Tasks: toWire(entries)}); err != nil {
			s.logger.Warn("failed to push snapshot", "client", c.id, "err", err)
			go s.drop(c)
		}
	})

	s.mu.Lock()
	s.clients[c.id] = c
	c.feed.Push(s.latest)
	count := len(s.clients)
	s.mu.Unlock()
	s.logger.Info("subscriber connected", "client", c.id, "subscribers", count)

	// Reads only detect the peer going away.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	s.drop(c)
}

func (s *Server) drop(c *wsClient) {
	s.mu.Lock()
	_, ok := s.clients[c.id]
	delete(s.clients, c.id)
	s.mu.Unlock()
	if !ok {
		return
	}
	c.feed.Stop()
	_ = c.conn.Close()
	s.logger.Info("subscriber disconnected", "client", c.id)
}

func (s *Server) internalError(w http.ResponseWriter, op, key string, err error) {
	s.logger.Error("backing store failed", "op", op, "key", key, "err", err)
	writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
