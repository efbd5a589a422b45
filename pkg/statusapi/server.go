// Package statusapi is an optional, local-only HTTP server exposing
// /healthz, /metrics, and /progress while a scan, backup, or gc run is in
// progress. Disabled by default; enabling it requires status_api.enabled
// and a status_api.auth_token in the configuration file.
package statusapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Server is the status HTTP server. Create it with New, call Start to
// serve, and Stop (or cancel the context passed to Start) to shut down.
type Server struct {
	httpServer   *http.Server
	tracker      *Tracker
	log          *slog.Logger
	shutdownOnce sync.Once
}

// New constructs a status server listening on port, guarded by a bearer
// token signed with authToken. It does not start listening until Start is
// called.
func New(port int, authToken string, log *slog.Logger) (*Server, string, error) {
	token, err := mintToken(authToken)
	if err != nil {
		return nil, "", err
	}

	tracker := NewTracker()
	handler := newRouter(tracker, authToken)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("127.0.0.1:%d", port),
			Handler:      handler,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		tracker: tracker,
		log:     log,
	}, token, nil
}

// Tracker returns the progress tracker backup/scan/gc callbacks should
// feed into while this server is running.
func (s *Server) Tracker() *Tracker {
	return s.tracker
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("status API listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("status API server failed: %w", err)
	}
}

// Stop gracefully shuts down the server. Safe to call more than once.
func (s *Server) Stop(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		err = s.httpServer.Shutdown(ctx)
	})
	return err
}
