package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"liedar/internal/dto"
	"liedar/internal/fusion"
	"liedar/internal/logger"
	"liedar/internal/service"
)

// ResetHandler handles POST /api/reset by starting a new session.
func ResetHandler(manager *service.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		manager.Reset()
		writeJSON(w, http.StatusOK, manager.Status())
	}
}

// WeightsHandler serves the fusion weights on GET and updates them on POST.
func WeightsHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, manager.Weights())

		case http.MethodPost:
			var req dto.WeightsRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid JSON body")
				return
			}
			weights, err := manager.UpdateWeights(req.Options()...)
			if errors.Is(err, fusion.ErrInvalidWeights) {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			if err != nil {
				logger.Error("Failed to update weights: %v", err)
				writeError(w, http.StatusInternalServerError, "failed to update weights")
				return
			}
			writeJSON(w, http.StatusOK, weights)

		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	}
}

// StatusHandler handles GET /api/status.
func StatusHandler(manager *service.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		resp := dto.StatusResponse{
			Session:    manager.Status(),
			QueueDepth: manager.QueueDepth(),
		}
		if rec, ok := manager.Latest(); ok {
			resp.Latest = &rec
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, dto.ErrorResponse{Error: msg})
}
