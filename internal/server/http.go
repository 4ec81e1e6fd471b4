package server

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/codecompass/codecompass-go/internal/apperr"
)

// newRouter builds the utility HTTP API described by the component
// design: a peer-detection ping, an indexing-status probe, and a
// fire-and-forget re-index trigger, plus a /metrics endpoint for the
// ambient Prometheus instrumentation.
func (h *Host) newRouter() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/api/ping", h.handlePing).Methods(http.MethodGet)
	r.HandleFunc("/api/indexing-status", h.handleIndexingStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/repository/notify-update", h.handleNotifyUpdate).Methods(http.MethodPost)
	r.Handle("/metrics", h.metricsHandler()).Methods(http.MethodGet)
	return r
}

// metricsHandler serves the Collector's own registry when Host was given
// one, falling back to the global registry otherwise.
func (h *Host) metricsHandler() http.Handler {
	if h.metricsReg == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(h.metricsReg, promhttp.HandlerOpts{})
}

type pingResponse struct {
	Service string `json:"service"`
	Status  string `json:"status"`
	Version string `json:"version"`
}

func (h *Host) handlePing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, pingResponse{
		Service: h.cfg.Server.Name,
		Status:  "ok",
		Version: h.cfg.Server.Version,
	})
}

func (h *Host) handleIndexingStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.tracker.Snapshot())
}

func (h *Host) handleNotifyUpdate(w http.ResponseWriter, r *http.Request) {
	_, err := h.registry.Dispatch(r.Context(), nil, "trigger_repository_update", map[string]any{})
	if err != nil {
		if apperr.Is(err, apperr.KindBusy) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
