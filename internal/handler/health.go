package handler

import (
	"net/http"
	"time"

	"bikeflow/internal/store"
)

// Readiness is implemented by the ingestor.
type Readiness interface {
	IsReady() bool
	LastError() error
	LastLoad() time.Time
}

type HealthHandler struct {
	ingestor Readiness
	store    *store.Store
}

func NewHealthHandler(ing Readiness, s *store.Store) *HealthHandler {
	return &HealthHandler{
		ingestor: ing,
		store:    s,
	}
}

func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

type ReadyResponse struct {
	Ready        bool      `json:"ready"`
	StationCount int       `json:"stationCount"`
	TripCount    int       `json:"tripCount"`
	Version      string    `json:"version,omitempty"`
	LastError    string    `json:"lastError,omitempty"`
	LastLoad     time.Time `json:"lastLoad,omitempty"`
	ServerTime   time.Time `json:"serverTime"`
}

// Readyz reports 503 until both feeds have loaded at least once.
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	ready := h.ingestor.IsReady()
	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}

	stats := h.store.GetStats()
	resp := ReadyResponse{
		Ready:        ready,
		StationCount: stats.StationCount,
		TripCount:    stats.TripCount,
		Version:      stats.Version,
		LastLoad:     h.ingestor.LastLoad(),
		ServerTime:   time.Now(),
	}
	if err := h.ingestor.LastError(); err != nil {
		resp.LastError = err.Error()
	}

	respondJSON(w, status, resp)
}
