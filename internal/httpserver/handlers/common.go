package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/iago/latex-orchestrator/internal/httpserver/middleware"
	"github.com/iago/latex-orchestrator/internal/orchestrator"
)

// API wires HTTP handlers onto one Orchestrator instance.
type API struct {
	Orchestrator *orchestrator.Orchestrator
}

func NewAPI(o *orchestrator.Orchestrator) *API {
	return &API{Orchestrator: o}
}

type errorPayload struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	RequestID string `json:"request_id"`
}

func writeJSON(w http.ResponseWriter, statusCode int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, r *http.Request, statusCode int, code, message string) {
	payload := errorPayload{RequestID: middleware.GetRequestID(r.Context())}
	payload.Error.Code = code
	payload.Error.Message = message
	writeJSON(w, statusCode, payload)
}
