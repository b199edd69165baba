package handler

import (
	"encoding/json"
	"net/http"

	"parkingserver/internal/dto"
	"parkingserver/internal/logger"
	"parkingserver/internal/model"
)

// StateReader exposes the latest detection state.
type StateReader interface {
	Snapshot() model.DetectionState
}

// HealthHandler handles GET /health with camera and telemetry health.
func HealthHandler(state StateReader, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, logger, dto.NewHealth(state.Snapshot()))
	}
}

// StatusHandler handles GET /status with the current slot occupancy.
func StatusHandler(state StateReader, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, logger, dto.NewStatus(state.Snapshot()))
	}
}

func writeJSON(w http.ResponseWriter, logger *logger.Logger, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("Error encoding response: %v", err)
	}
}
