// Package server exposes a running surface over HTTP: its state, a stream of
// state changes, Prometheus metrics and an endpoint for remote events.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/grovetools/pkgview/internal/fanin"
	"github.com/grovetools/pkgview/internal/store"
)

type Server struct {
	logger  *logrus.Entry
	store   *store.Store
	metrics http.Handler
	events  *EventSource
	server  *http.Server
}

// New creates a server for st. metrics may be nil.
func New(logger *logrus.Entry, st *store.Store, metrics http.Handler) *Server {
	return &Server{
		logger:  logger,
		store:   st,
		metrics: metrics,
		events:  &EventSource{},
	}
}

// Events is the fan-in source fed by POST /api/events.
func (s *Server) Events() *EventSource {
	return s.events
}

// Handler returns the routes, accepting HTTP/2 without TLS.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/api/state", s.handleGetState)
	mux.HandleFunc("/api/stream", s.handleStreamState)
	mux.HandleFunc("/api/events", s.handlePostEvent)
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics)
	}

	return h2c.NewHandler(mux, &http2.Server{})
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			s.logger.WithError(err).Warn("Server shutdown failed")
		}
	}()

	s.logger.WithField("address", listener.Addr().String()).Info("Server listening")
	if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Debug("Shutting down server")
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.store.Get())
}

// stateUpdate is one server-sent event. State is the snapshot after the
// change was applied.
type stateUpdate struct {
	UpdateType string      `json:"update_type"`
	Source     string      `json:"source,omitempty"`
	State      store.State `json:"state"`
}

func (s *Server) handleStreamState(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := s.store.Subscribe()
	defer s.store.Unsubscribe(ch)

	fmt.Fprintf(w, ": connected\n\n")
	s.writeEvent(w, stateUpdate{UpdateType: "initial", State: s.store.Get()})
	flusher.Flush()
	s.logger.Debug("Stream client connected")

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("Stream client disconnected")
			return
		case u, ok := <-ch:
			if !ok {
				return
			}
			s.writeEvent(w, stateUpdate{UpdateType: string(u.Type), Source: u.Source, State: s.store.Get()})
			flusher.Flush()
		}
	}
}

func (s *Server) writeEvent(w http.ResponseWriter, u stateUpdate) {
	data, err := json.Marshal(u)
	if err != nil {
		s.logger.WithError(err).Error("Failed to marshal update")
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
}

func (s *Server) handlePostEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var ev fanin.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if ev.Type == "" {
		http.Error(w, "event type is required", http.StatusBadRequest)
		return
	}

	if err := s.events.Post(r.Context(), ev); err != nil {
		if errors.Is(err, ErrNotAttached) {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		http.Error(w, err.Error(), http.StatusRequestTimeout)
		return
	}
	s.logger.WithField("event", ev.String()).Debug("Remote event accepted")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"accepted": string(ev.Type)})
}
