// Package http serves the cached metrics snapshot to the dashboard.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"metricsd/internal/domain"
	"metricsd/internal/logger"
)

const (
	MetricsPath = "/api/metrics"

	shutdownTimeout = 5 * time.Second
)

type SnapshotReader interface {
	Snapshot() (domain.Snapshot, bool)
}

type Server struct {
	store SnapshotReader
	log   logger.Logger
	addr  string
	srv   *http.Server
}

func NewServer(addr string, store SnapshotReader, log logger.Logger) *Server {
	s := &Server{addr: addr, store: store, log: log}

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ErrorLog:          log.StdLogger(slog.LevelError),
	}

	return s
}

// Handler routes requests. There is no access log; the dashboard polls
// every few seconds.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(MetricsPath, s.handleMetrics)
	mux.HandleFunc("/", notFound)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")

		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.WriteHeader(http.StatusNoContent)
			return
		}

		mux.ServeHTTP(w, r)
	})
}

// Start listens on the configured address and blocks until ctx is
// cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http: listening", "address", ln.Addr().String(), "path", MetricsPath)
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		s.log.Info("http: server stopped")
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		notFound(w, r)
		return
	}

	snap, ok := s.store.Snapshot()
	if !ok {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	body, err := json.Marshal(domain.NewPayload(snap))
	if err != nil {
		s.log.Error("http: encode metrics", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNotFound)
}
