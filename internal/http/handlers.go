package http

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/fjellheim/elevator-fleet/internal/infra/health"
)

// statusPayload is the §6.3 wire shape plus the selfId field SPEC_FULL.md
// §4.5 adds for the Status API specifically (the peer-to-peer wire
// format itself never needs to say which node sent it; the snapshot's
// states map already distinguishes cabins by id, but a dashboard polling
// a single node benefits from knowing which entry is "this node").
type statusPayload struct {
	SelfID       string                 `json:"selfId"`
	Version      uint64                 `json:"version"`
	HallRequests [][2]bool              `json:"hallRequests"`
	States       map[string]interface{} `json:"states"`
}

func (s *Server) livenessHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	result, err := s.healthService.Check(r.Context(), "liveness")
	if err != nil {
		http.Error(w, "Liveness check failed", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if result.Status == health.StatusHealthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(result); err != nil {
		log.Printf("failed to encode liveness response: %v", err)
	}
}

func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	result, err := s.healthService.Check(r.Context(), "readiness")
	if err != nil {
		http.Error(w, "Readiness check failed", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if result.Status == health.StatusHealthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(result); err != nil {
		log.Printf("failed to encode readiness response: %v", err)
	}
}

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(s.buildStatusPayload()); err != nil {
		log.Printf("failed to encode status response: %v", err)
	}
}

func (s *Server) buildStatusPayload() statusPayload {
	data := s.coordinator.Snapshot()
	states := make(map[string]interface{}, len(data.States))
	for id, st := range data.States {
		states[id] = st
	}
	return statusPayload{
		SelfID:       s.selfID,
		Version:      data.Version,
		HallRequests: data.HallRequests,
		States:       states,
	}
}
