// Package server implements the followup HTTP server: REST API, auth,
// and SSE real-time events bridged from the internal bus.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/GoCodeAlone/followup/config"
	"github.com/GoCodeAlone/followup/events"
	"github.com/GoCodeAlone/followup/jira"
	"github.com/GoCodeAlone/followup/pipeline"
	"github.com/GoCodeAlone/followup/registry"
	"github.com/GoCodeAlone/followup/summarize"
	"github.com/GoCodeAlone/followup/task"
)

// IssueSearcher queries the tracker for upcoming issues.
type IssueSearcher interface {
	SearchDue(ctx context.Context, project string, days int) ([]jira.Issue, error)
}

// Server is the followup HTTP server.
type Server struct {
	cfg     config.Config
	mux     *http.ServeMux
	httpSrv *http.Server
	logger  *slog.Logger

	orchestrator *pipeline.Orchestrator
	tasks        task.Store
	records      *summarize.RecordStore
	agents       *registry.InMemoryRegistry
	bus          events.Bus

	tracker IssueSearcher
	project string

	// SSE clients
	sseMu      sync.RWMutex
	sseClients map[chan []byte]struct{}

	// JWT secret caching
	secretOnce      sync.Once
	generatedSecret string

	startTime time.Time
	version   string
}

// New creates a new Server with the given config and logger.
func New(cfg config.Config, ver string, logger *slog.Logger) *Server {
	return &Server{
		cfg:        cfg,
		mux:        http.NewServeMux(),
		logger:     logger,
		sseClients: make(map[chan []byte]struct{}),
		startTime:  time.Now(),
		version:    ver,
	}
}

// SetOrchestrator attaches the pipeline orchestrator to the server.
func (s *Server) SetOrchestrator(o *pipeline.Orchestrator) {
	s.orchestrator = o
}

// SetTaskStore attaches a task store to the server.
func (s *Server) SetTaskStore(store task.Store) {
	s.tasks = store
}

// SetRecordStore attaches the summary record store to the server.
func (s *Server) SetRecordStore(records *summarize.RecordStore) {
	s.records = records
}

// SetRegistry attaches the agent registry to the server.
func (s *Server) SetRegistry(reg *registry.InMemoryRegistry) {
	s.agents = reg
}

// SetTracker attaches a tracker client used for issue queries against
// the given project.
func (s *Server) SetTracker(tracker IssueSearcher, project string) {
	s.tracker = tracker
	s.project = project
}

// SetBus attaches the event bus. Published events are forwarded to
// connected SSE clients.
func (s *Server) SetBus(bus events.Bus) {
	s.bus = bus
}

// Start registers routes, bridges the bus to SSE, and begins listening.
func (s *Server) Start() error {
	s.registerRoutes()

	if s.bus != nil {
		s.bus.Subscribe("", func(_ context.Context, ev *events.Event) error {
			s.BroadcastEvent(string(ev.Type), ev)
			return nil
		})
	}

	addr := s.cfg.Server.Addr
	if addr == "" {
		addr = ":9090"
	}
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.requestLogger(s.mux),
		ReadHeaderTimeout: 15 * time.Second,
	}
	s.logger.Info("server listening", slog.String("addr", addr))
	return s.httpSrv.ListenAndServe()
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// registerRoutes sets up all HTTP routes.
func (s *Server) registerRoutes() {
	// Public routes (no auth required)
	s.mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	s.mux.HandleFunc("GET /api/status", s.handleStatus)

	// SSE — auth handled inline because EventSource can't set headers
	s.mux.HandleFunc("GET /events", s.handleSSE)

	// Protected API — wrapped in auth middleware
	apiMux := http.NewServeMux()
	apiMux.HandleFunc("POST /api/run", s.handleRun)
	apiMux.HandleFunc("GET /api/tasks", s.handleTasks)
	apiMux.HandleFunc("GET /api/summaries/{id}", s.handleSummary)
	apiMux.HandleFunc("GET /api/agents", s.handleAgents)
	apiMux.HandleFunc("GET /api/issues/due", s.handleDueIssues)
	apiMux.HandleFunc("GET /api/auth/me", s.handleMe)

	s.mux.Handle("/api/", s.authMiddleware(apiMux))
}

// requestLogger logs each request with method, path, and duration.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Duration("duration", time.Since(start)))
	})
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONError writes a JSON error response.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// handleSSE implements Server-Sent Events for real-time updates.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	// Verify auth via query token param for SSE (EventSource can't set headers)
	token := r.URL.Query().Get("token")
	if token != "" {
		if _, err := verifyJWT(s.jwtSecret(), token); err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)

	ch := make(chan []byte, 64)
	s.sseMu.Lock()
	s.sseClients[ch] = struct{}{}
	s.sseMu.Unlock()

	defer func() {
		s.sseMu.Lock()
		delete(s.sseClients, ch)
		s.sseMu.Unlock()
		close(ch)
	}()

	// Send initial connected event
	fmt.Fprintf(w, "data: {\"type\":\"connected\"}\n\n") //nolint:errcheck
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case data, ok := <-ch:
			if !ok {
				return
			}
			lines := strings.Split(string(data), "\n")
			for _, line := range lines {
				fmt.Fprintf(w, "data: %s\n", line) //nolint:errcheck
			}
			fmt.Fprintln(w) //nolint:errcheck
			flusher.Flush()
		}
	}
}

// BroadcastEvent sends a JSON-encoded event to all connected SSE clients.
func (s *Server) BroadcastEvent(eventType string, payload any) {
	data, err := json.Marshal(map[string]any{
		"type":    eventType,
		"payload": payload,
	})
	if err != nil {
		s.logger.Error("broadcast event marshal", slog.Any("err", err))
		return
	}

	s.sseMu.RLock()
	defer s.sseMu.RUnlock()
	for ch := range s.sseClients {
		select {
		case ch <- data:
		default:
			// Client channel full, skip
		}
	}
}
