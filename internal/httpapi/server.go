// Package httpapi exposes the assistant over HTTP: POST /chat, a WebSocket
// chat at /ws, /healthz and /metrics.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"

	"github.com/bookrag/bookrag/internal/agent"
	"github.com/bookrag/bookrag/internal/metrics"
	"github.com/bookrag/bookrag/internal/schema"
)

const maxBodyBytes = 1 << 20

// Responder answers one chat request. *agent.Assistant satisfies it.
type Responder interface {
	Respond(ctx context.Context, req agent.Request) agent.Result
}

// ChatRequest is the body of POST /chat and of each WebSocket message.
type ChatRequest struct {
	Query   string         `json:"query"`
	History []schema.Turn  `json:"history"`
	Filters map[string]any `json:"filters,omitempty"`
}

// ChatResponse is the reply to a ChatRequest.
type ChatResponse struct {
	Response string `json:"response"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Server is the chat API.
type Server struct {
	responder Responder
	healthy   func() bool
	metrics   *metrics.Metrics
	upgrader  websocket.Upgrader
	origins   []string
}

// Option configures a Server.
type Option func(*Server)

// WithBackendHealth reports tool backend health on /healthz.
func WithBackendHealth(f func() bool) Option {
	return func(s *Server) { s.healthy = f }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithAllowedOrigins restricts CORS and WebSocket upgrades to the given
// origins. Without it any origin is accepted.
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) {
		if len(origins) == 0 {
			return
		}
		allowed := make(map[string]bool, len(origins))
		s.origins = nil
		for _, o := range origins {
			o = strings.TrimRight(o, "/")
			allowed[o] = true
			s.origins = append(s.origins, o)
		}
		s.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || allowed[origin]
		}
	}
}

func New(responder Responder, opts ...Option) *Server {
	s := &Server{
		responder: responder,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	origins := s.origins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader},
	})

	// Order: request id -> CORS -> recover -> logging/metrics
	r.Use(requestID)
	r.Use(c.Handler)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	r.Post("/chat", s.handleChat)
	r.Get("/ws", s.handleWebSocket)
	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	slog.Info("chat API listening", "addr", addr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve chat API: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown chat API: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve chat API: %w", err)
	}
	return nil
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body: " + err.Error()})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "query is required"})
		return
	}

	res := s.respond(r.Context(), req)
	status := http.StatusOK
	if errors.Is(res.Err, agent.ErrBackendUnavailable) {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, ChatResponse{Response: res.Response})
}

func (s *Server) respond(ctx context.Context, req ChatRequest) agent.Result {
	res := s.responder.Respond(ctx, agent.Request{
		Query:   req.Query,
		History: req.History,
		Filters: req.Filters,
	})
	if res.Err != nil {
		slog.Warn("chat request failed", "request_id", middleware.GetReqID(ctx), "state", res.State, "err", res.Err)
	}
	return res
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	backend := "unavailable"
	if s.healthy != nil && s.healthy() {
		backend = "connected"
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "toolBackend": backend})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
