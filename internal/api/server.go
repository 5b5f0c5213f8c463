// Package api exposes the reconciler's operational surface: health,
// metrics, the live event stream, and the latest per-worker run summaries.
// The business/order API of the dashboard lives elsewhere.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"orderlink/internal/buildinfo"
	"orderlink/internal/events"
	"orderlink/internal/metrics"
	"orderlink/internal/model"
	"orderlink/internal/worker"
)

type Server struct {
	Broker  events.Broker
	Workers []*worker.Worker
	Log     *zap.Logger
}

func NewServer(broker events.Broker, workers []*worker.Worker, log *zap.Logger) *Server {
	return &Server{Broker: broker, Workers: workers, Log: log.Named("api")}
}

// Mux wires every handler the reconciler serves.
func (s *Server) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.HealthHandler)
	mux.HandleFunc("/readyz", s.ReadyHandler)
	mux.HandleFunc("/v1/reconcile/summary", s.SummaryHandler)
	mux.HandleFunc("/ws/events", s.EventsWSHandler)
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	return mux
}

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": buildinfo.Version,
	})
}

// ReadyHandler reports ready once every linking worker has completed a tick,
// which implies the store answered a full batch pass.
func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	for _, wk := range s.Workers {
		if wk.LastSummary().StartedAt.IsZero() {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"ready":   false,
				"waiting": wk.Name(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ready": true})
}

// SummaryHandler returns the latest completed tick per linking worker.
func (s *Server) SummaryHandler(w http.ResponseWriter, r *http.Request) {
	out := []model.RunSummary{}
	for _, wk := range s.Workers {
		sum := wk.LastSummary()
		if !sum.StartedAt.IsZero() {
			out = append(out, sum)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"workers": out})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
