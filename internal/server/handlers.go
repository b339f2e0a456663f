package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aristath/qumatch/internal/domain"
)

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":  "healthy",
		"version": "1.0.0",
		"service": "qumatch",
	}

	s.writeJSON(w, http.StatusOK, response)
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError maps domain errors to HTTP status codes
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrWindowOutOfBounds),
		errors.Is(err, domain.ErrIndexRange):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrBackendUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrTranspilation):
		status = http.StatusBadGateway
	case errors.Is(err, domain.ErrJobTimeout):
		status = http.StatusGatewayTimeout
	}

	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
