package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/iago/latex-orchestrator/internal/domain"
	"github.com/iago/latex-orchestrator/internal/orchestrator"
)

const maxUploadMemory = 32 << 20 // buffer this much in memory before spilling to a temp file

type submitOptions struct {
	SkipImages        bool   `json:"skip_images"`
	MaxProcessingTime int    `json:"max_processing_time"`
	OutputFormat      string `json:"output_format"`
}

// Submit accepts a multipart upload: the "archive" file part plus an
// optional "options" part holding a JSON object with the keys from
// spec §6 (skip_images, max_processing_time, output_format).
func (api *API) Submit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "expected multipart/form-data")
		return
	}

	file, header, err := r.FormFile("archive")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "archive file part is required")
		return
	}
	defer file.Close()

	opts := submitOptions{OutputFormat: "html"}
	if raw := r.FormValue("options"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &opts); err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid_request", "options must be a JSON object")
			return
		}
	}
	if opts.OutputFormat != "" && opts.OutputFormat != "html" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "output_format only supports html")
		return
	}

	id, err := api.Orchestrator.Submit(r.Context(), file, header.Filename, domain.Options{
		SkipImages:               opts.SkipImages,
		MaxProcessingTimeSeconds: opts.MaxProcessingTime,
		OutputFormat:             opts.OutputFormat,
	})
	if err != nil {
		if err == orchestrator.ErrCapacityExceeded {
			writeError(w, r, http.StatusTooManyRequests, "capacity_exceeded", "max concurrent jobs reached")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal_error", "failed to submit job")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":     id,
		"status_url": "/v1/jobs/" + id,
	})
}
