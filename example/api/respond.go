package api

import (
	"net/http"

	jsoniter "github.com/json-iterator/go"

	"github.com/circulationkit/library-circulation-go/example/shell"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) respond(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if payload == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", "error", err.Error())
	}
}

func (s *Server) respondError(w http.ResponseWriter, err error) {
	s.respond(w, shell.StatusCodeFor(err), errorResponse{Error: err.Error()})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		s.respond(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return false
	}

	return true
}
