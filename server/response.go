package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/bnolan/preact-kit/logcolors"
	"github.com/bnolan/preact-kit/routes"

	log "github.com/sirupsen/logrus"
)

// ErrorResponse is the body of every error answered by the server
type ErrorResponse struct {
	Error string `json:"error"`
}

// statusFor maps resolution failures to their HTTP status
func statusFor(err error) int {
	switch {
	case errors.Is(err, routes.ErrRouteNotFound):
		return http.StatusNotFound
	case errors.Is(err, routes.ErrInvalidRoute):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Warnf("%s Failed to encode response: %v", logcolors.LogServer, err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Errorf("%s %s %s: %v", logcolors.LogServer, r.Method, r.URL.Path, err)
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}
