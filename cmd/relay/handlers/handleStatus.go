package handlers

import (
	"net/http"
)

type statusResponse struct {
	Version int `json:"version"`
}

// handleStatus returns the current api version
func (h *Handlers) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := statusResponse{
			Version: 1,
		}
		respond(w, dataMessage(status, "API responding"))
	}
}

// handleHealth probes the workflow engine and the analytics store
func (h *Handlers) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := h.prober.Probe(r.Context())
		respond(w, dataMessage(status, "health probe"))
	}
}
