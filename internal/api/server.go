// Package api serves the router's read-only status surface: health, metrics,
// and the learned target tables.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/jwidauer/mavlink-shouter/internal/endpoint"
)

// Server exposes the status API over HTTP.
type Server struct {
	log       *logrus.Entry
	srv       *http.Server
	endpoints []*endpoint.Endpoint
}

// endpointStatus is the JSON shape of one endpoint's learned targets.
type endpointStatus struct {
	Name    string                   `json:"name"`
	Targets []endpoint.LearnedTarget `json:"targets"`
}

// New creates a status server bound to addr.
func New(log *logrus.Logger, addr string, endpoints []*endpoint.Endpoint) *Server {
	s := &Server{
		log:       log.WithField("component", "api"),
		endpoints: endpoints,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.handleHealth)
	r.Get("/endpoints", s.handleEndpoints)
	r.Handle("/metrics", promhttp.Handler())

	s.srv = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Run serves until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.srv.Shutdown(shutdownCtx)
	}()

	s.log.Infof("status API listening on %s", s.srv.Addr)
	if err := s.srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleEndpoints(w http.ResponseWriter, _ *http.Request) {
	statuses := make([]endpointStatus, 0, len(s.endpoints))
	for _, ep := range s.endpoints {
		statuses = append(statuses, endpointStatus{
			Name:    ep.Name(),
			Targets: ep.Targets(),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(statuses); err != nil {
		s.log.Errorf("encoding endpoint status: %v", err)
	}
}
