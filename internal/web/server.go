// Package web is the HTTP preview surface. It serves the latest rendered
// frame as a still and as an MJPEG stream, the static image requested by
// the controller, and a read-only view of the product catalog.
package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/vbonduro/shelfshot/internal/domain"
	"github.com/vbonduro/shelfshot/internal/manifest"
	"github.com/vbonduro/shelfshot/internal/photostore"
	"github.com/vbonduro/shelfshot/internal/preview"
)

// productIndex is the subset of store.ProductIndex the server requires.
type productIndex interface {
	List(ctx context.Context) ([]domain.ProductSummary, error)
	Search(ctx context.Context, query string) ([]domain.ProductSummary, error)
}

type Server struct {
	addr       string
	layout     manifest.Layout
	index      productIndex
	photoStore photostore.PhotoStore
	mux        *http.ServeMux
	logger     *slog.Logger
	httpServer *http.Server
	listenAddr string

	mu      sync.Mutex
	live    []byte
	liveSeq uint64
	changed chan struct{}
	still   []byte
	done    chan struct{}
	closed  bool
}

// NewServer builds a server for addr. photoStore must be rooted at the
// layout base so product files resolve by their catalog key.
func NewServer(addr string, layout manifest.Layout, index productIndex, ps photostore.PhotoStore, logger *slog.Logger) *Server {
	s := &Server{
		addr:       addr,
		layout:     layout,
		index:      index,
		photoStore: ps,
		mux:        http.NewServeMux(),
		logger:     logger,
		changed:    make(chan struct{}),
		done:       make(chan struct{}),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /healthcheck", s.handleHealthcheck)
	s.mux.HandleFunc("GET /preview/live.jpg", s.handleLiveFrame)
	s.mux.HandleFunc("GET /preview/stream", s.handleStream)
	s.mux.HandleFunc("GET /preview/image.jpg", s.handleStill)
	s.mux.HandleFunc("GET /api/products", s.handleListProducts)
	s.mux.HandleFunc("GET /api/products/{id}", s.handleGetProduct)
	s.mux.HandleFunc("GET /api/products/{id}/files/{path...}", s.handleGetProductFile)
}

// securityHeaders adds defensive HTTP response headers to every response.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Content-Security-Policy", "default-src 'self'; img-src 'self' data:")
		next.ServeHTTP(w, r)
	})
}

// statusRecorder wraps http.ResponseWriter to capture the written status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func requestLogger(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestLogger(s.logger, securityHeaders(s.mux)).ServeHTTP(w, r)
}

// Open binds the listen address and serves in the background. A server
// without an address, or one that cannot bind, is unavailable.
func (s *Server) Open() error {
	if s.addr == "" {
		return fmt.Errorf("%w: no listen address", preview.ErrUnavailable)
	}
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("%w: %v", preview.ErrUnavailable, err)
	}

	srv := &http.Server{
		Handler:      s,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	s.mu.Lock()
	s.httpServer = srv
	s.listenAddr = ln.Addr().String()
	s.mu.Unlock()

	s.logger.Info("starting preview server", "addr", s.listenAddr)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("preview server error", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound address once Open succeeded.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listenAddr
}

// Shutdown ends every open stream and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.done)
	}
	srv := s.httpServer
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down preview server: %w", err)
	}
	return nil
}

func closeWithLog(c io.Closer, label string, logger *slog.Logger) {
	if err := c.Close(); err != nil {
		logger.Error("failed to close resource", "label", label, "error", err)
	}
}
