package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/DevRickLin/prwatch-relay/internal/biz/domain"
	"github.com/DevRickLin/prwatch-relay/internal/biz/usecase"
	"github.com/DevRickLin/prwatch-relay/internal/pkg/log"
)

// Server provides the admin HTTP API over the subscription registry
type Server struct {
	registry *usecase.SubscriptionRegistry
	logger   zerolog.Logger

	server *http.Server
	port   int
}

// WatchResponse is one watched resource
type WatchResponse struct {
	Key         string              `json:"key"`
	Subscribers []domain.Subscriber `json:"subscribers"`
}

// WatchListResponse is the body of GET /api/watches
type WatchListResponse struct {
	Count   int             `json:"count"`
	Watches []WatchResponse `json:"watches"`
}

// UnwatchResponse is the body of a subscriber DELETE
type UnwatchResponse struct {
	Key     string `json:"key"`
	User    string `json:"user"`
	Removed int    `json:"removed"`
}

// NewServer creates a new API server
func NewServer(registry *usecase.SubscriptionRegistry, port int) *Server {
	s := &Server{
		registry: registry,
		logger:   log.Component("api"),
		port:     port,
	}
	s.server = &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the API routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	// Watch registry
	mux.HandleFunc("GET /api/watches", s.handleListWatches)
	mux.HandleFunc("GET /api/watches/{key}", s.handleGetWatch)
	mux.HandleFunc("DELETE /api/watches/{key}/subscribers/{user}", s.handleUnwatch)

	return mux
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	s.logger.Info().Int("port", s.port).Msg("starting HTTP server")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleListWatches(w http.ResponseWriter, r *http.Request) {
	watches := s.registry.Watches()
	resp := WatchListResponse{
		Count:   len(watches),
		Watches: make([]WatchResponse, 0, len(watches)),
	}
	for _, watch := range watches {
		resp.Watches = append(resp.Watches, WatchResponse{
			Key:         string(watch.Key),
			Subscribers: watch.Subscribers,
		})
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetWatch(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	subs := s.registry.ListFor(domain.ResourceKey(key), "")
	if subs == nil {
		subs = []domain.Subscriber{}
	}
	s.writeJSON(w, http.StatusOK, WatchResponse{Key: key, Subscribers: subs})
}

func (s *Server) handleUnwatch(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	user := r.PathValue("user")

	removed, err := s.registry.Remove(r.Context(), domain.ResourceKey(key), user)
	if err != nil {
		s.logger.Error().Err(err).Str(log.FieldKey, key).Str(log.FieldUser, user).Msg("unwatch failed")
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, UnwatchResponse{Key: key, User: user, Removed: removed})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}
