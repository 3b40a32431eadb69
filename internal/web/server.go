// Package web provides the HTTP status and metrics server for the
// owmaster daemon.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweeney/owmaster/internal/engine"
)

// StatusProvider exposes the engine's current view.
type StatusProvider interface {
	Status() engine.Status
}

// Server serves the status endpoints over HTTP.
type Server struct {
	httpServer *http.Server
	provider   StatusProvider
}

// New creates a Server that reads state from the given provider and
// serves metrics from the given gatherer.
func New(addr string, provider StatusProvider, gatherer prometheus.Gatherer) *Server {
	s := &Server{provider: provider}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/", s.handleIndex)
	r.Get("/status.json", s.handleJSON)
	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: r,
	}
	return s
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	st := s.provider.Status()
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "owmaster: %d cycles, %d samples, %d transitions, %d dispatches (%d failed), %d dropped\n\n",
		st.Stats.Cycles, st.Stats.Samples, st.Stats.Transitions,
		st.Stats.Dispatches, st.Stats.DispatchFailures, st.Stats.Dropped)
	for _, ch := range st.Channels {
		name := ch.Device
		if ch.Alias != "" {
			name = ch.Alias
		}
		fmt.Fprintf(w, "%s.%s (%s): %s value=%g last=%s\n",
			name, ch.Channel, ch.Kind, orUnknown(ch.State), ch.Value,
			ch.LastSeen.Format("15:04:05"))
	}
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.provider.Status())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok\n"))
}

func orUnknown(state string) string {
	if state == "" {
		return "unknown"
	}
	return state
}
