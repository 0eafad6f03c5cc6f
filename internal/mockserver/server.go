// Package mockserver serves a scenario's mock routes over real HTTP, for
// clients that call the backend outside the browser (the dev server's own
// proxy, a native app, curl).
package mockserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/roach88/pagecheck/internal/mock"
)

// Hit records one request the server answered.
type Hit struct {
	Method  string `json:"method"`
	URL     string `json:"url"`
	Status  int    `json:"status"`
	Matched bool   `json:"matched"`
}

// Options configures a Server.
type Options struct {
	// Origin replaces scheme and host when matching, so that routes written
	// for http://localhost:5000 match while serving on another port. Empty
	// uses the request's own Host.
	Origin string
	Logger *slog.Logger
}

// Server answers requests from a mock route table. Unmatched requests get
// 501 so the caller notices a missing stub.
type Server struct {
	Router *chi.Mux
	table  *mock.Table
	opts   Options
	logger *slog.Logger

	mu   sync.Mutex
	hits []Hit
}

// New builds a server over tbl.
func New(tbl *mock.Table, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Server{
		Router: chi.NewRouter(),
		table:  tbl,
		opts:   opts,
		logger: logger,
	}

	s.Router.Use(chimw.RequestID)
	s.Router.Use(chimw.Recoverer)
	s.Router.Use(cors)
	s.Router.Use(s.requestLog)

	s.Router.Get("/__pagecheck/routes", s.handleRoutes)
	s.Router.Get("/__pagecheck/hits", s.handleHits)
	s.Router.NotFound(s.handleMock)
	s.Router.MethodNotAllowed(s.handleMock)
	return s
}

// ServeHTTP implements http.Handler so the server can be used directly in tests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

// Hits returns a copy of the requests answered so far.
func (s *Server) Hits() []Hit {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Hit, len(s.hits))
	copy(out, s.hits)
	return out
}

func (s *Server) record(h Hit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hits = append(s.hits, h)
}

func (s *Server) requestURL(r *http.Request) string {
	origin := s.opts.Origin
	if origin == "" {
		origin = "http://" + r.Host
	}
	return origin + r.URL.RequestURI()
}

func (s *Server) handleMock(w http.ResponseWriter, r *http.Request) {
	url := s.requestURL(r)
	route, err := s.table.Match(mock.Request{Method: r.Method, URL: url})
	if err != nil {
		s.logger.Warn("unhandled request", "method", r.Method, "url", url)
		s.record(Hit{Method: r.Method, URL: url, Status: http.StatusNotImplemented})
		writeError(w, http.StatusNotImplemented, err.Error())
		return
	}

	s.record(Hit{Method: r.Method, URL: url, Status: route.Status, Matched: true})
	if route.ContentType != "" {
		w.Header().Set("Content-Type", route.ContentType)
	}
	w.WriteHeader(route.Status)
	_, _ = w.Write(route.Body)
}

type routeView struct {
	Method      string `json:"method"`
	URL         string `json:"url"`
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
}

func (s *Server) handleRoutes(w http.ResponseWriter, _ *http.Request) {
	routes := s.table.Routes()
	out := make([]routeView, len(routes))
	for i, rt := range routes {
		out[i] = routeView{Method: rt.Method, URL: rt.URLPattern, Status: rt.Status, ContentType: rt.ContentType}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleHits(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.Hits())
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
// ready, when non-nil, receives the bound address once listening.
func (s *Server) Serve(ctx context.Context, addr string, ready chan<- string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	srv := &http.Server{
		Handler:      s.Router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("mock server listening", "addr", ln.Addr().String(), "routes", s.table.Len())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	if ready != nil {
		ready <- ln.Addr().String()
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	s.logger.Info("mock server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// cors allows the app under test, served from another origin, to call the stubs.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", chimw.GetReqID(r.Context()),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"message": message,
			"type":    http.StatusText(status),
			"code":    status,
		},
	})
}
