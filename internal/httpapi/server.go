// Package httpapi exposes the vision tools over plain HTTP for shared,
// remote deployments.
//
// Routes:
//
//	GET  /health           liveness
//	GET  /tools            JSON array of tool definitions
//	POST /call/{tool_name} body is the tool arguments
//	POST /invoke           body is {"tool": name, "arguments": {...}}
//
// Both call routes answer with the MCP CallToolResult envelope. A failing
// tool is still HTTP 200; the failure is in the payload with isError set.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/ironsheep/vision-mcp/internal/logging"
	"github.com/ironsheep/vision-mcp/internal/server"
	"github.com/ironsheep/vision-mcp/internal/vision"
)

const (
	// RequestIDHeader carries the per-request id, echoed from the client when set.
	RequestIDHeader = "X-Request-ID"

	defaultMaxBodyBytes = 32 << 20
	shutdownGrace       = 10 * time.Second
)

// Server is the HTTP adapter. Handlers share only the read-only Dispatcher.
type Server struct {
	dispatcher   *server.Dispatcher
	router       *mux.Router
	handler      http.Handler
	log          logging.Logger
	service      string
	version      string
	maxBodyBytes int64
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l logging.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithVersion sets the version reported by /health.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// WithMaxBodyBytes caps request bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) { s.maxBodyBytes = n }
}

// New builds the HTTP adapter around d.
func New(d *server.Dispatcher, opts ...Option) *Server {
	s := &Server{
		dispatcher:   d,
		router:       mux.NewRouter(),
		log:          logging.Default,
		service:      "vision-mcp",
		version:      "dev",
		maxBodyBytes: defaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.registerRoutes()
	s.router.Use(s.requestID)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{RequestIDHeader},
	})
	s.handler = c.Handler(s.router)
	return s
}

// Handler returns the root handler, CORS included.
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) registerRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/tools", s.handleListTools).Methods(http.MethodGet)
	s.router.HandleFunc("/call/{tool_name}", s.handleCall).Methods(http.MethodPost)
	s.router.HandleFunc("/invoke", s.handleInvoke).Methods(http.MethodPost)
}

// ListenAndServe serves on addr until ctx ends, then shuts down gracefully,
// giving in-flight requests a short grace period.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("HTTP server listening on %s", ln.Addr())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Infof("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type healthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, healthResponse{Status: "healthy", Service: s.service, Version: s.version})
}

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.dispatcher.Registry().List())
}

func (s *Server) handleCall(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["tool_name"]
	args, err := s.readBody(w, r)
	if err != nil {
		s.writeJSON(w, http.StatusOK, server.FormatError(vision.InvalidArgument("failed to read request body: %v", err)))
		return
	}
	s.call(w, r, name, args)
}

// InvokeRequest is the body of POST /invoke.
type InvokeRequest struct {
	Tool      string          `json:"tool"`
	Arguments json.RawMessage `json:"arguments"`
}

func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	body, err := s.readBody(w, r)
	if err != nil {
		s.writeJSON(w, http.StatusOK, server.FormatError(vision.InvalidArgument("failed to read request body: %v", err)))
		return
	}
	var req InvokeRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeJSON(w, http.StatusOK, server.FormatError(vision.InvalidArgument("malformed invoke request: %v", err)))
		return
	}
	if req.Tool == "" {
		s.writeJSON(w, http.StatusOK, server.FormatError(vision.InvalidArgument("tool is required")))
		return
	}
	s.call(w, r, req.Tool, req.Arguments)
}

// call runs the tool on the dispatcher's worker pool; the net/http goroutine
// only waits, so health and listing stay responsive under load.
func (s *Server) call(w http.ResponseWriter, r *http.Request, name string, args json.RawMessage) {
	s.log.Infof("[%s] call %s", requestIDFrom(r.Context()), name)
	s.writeJSON(w, http.StatusOK, s.dispatcher.Call(r.Context(), name, args))
}

func (s *Server) readBody(w http.ResponseWriter, r *http.Request) (json.RawMessage, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBodyBytes))
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warnf("failed to write response: %v", err)
	}
}

type requestIDKey struct{}

// requestID tags every request with an id, reusing the client's when given.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		start := time.Now()
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
		s.log.Debugf("[%s] %s %s in %s", id, r.Method, r.URL.Path, time.Since(start).Round(time.Millisecond))
	})
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
