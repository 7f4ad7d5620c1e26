package handlers

import (
	"archive/zip"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/iago/latex-orchestrator/internal/orchestrator"
	"github.com/iago/latex-orchestrator/internal/registry"
)

// jobIDFromPath extracts the id from a URL like /v1/jobs/<id> or
// /v1/jobs/<id>/result, stripping the given trailing suffix.
func jobIDFromPath(path, prefix, suffix string) string {
	id := strings.TrimPrefix(path, prefix)
	id = strings.TrimSuffix(id, suffix)
	return strings.Trim(id, "/")
}

// Status implements the Status interface (spec §6): GET /v1/jobs/{id}.
func (api *API) Status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	id := jobIDFromPath(r.URL.Path, "/v1/jobs/", "")
	if id == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "job id is required")
		return
	}

	snap, err := api.Orchestrator.Status(r.Context(), id)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "not_found", "job not found")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal_error", "failed to load job")
		return
	}

	stages := make([]map[string]any, 0, len(snap.Stages))
	for _, s := range snap.Stages {
		entry := map[string]any{
			"name":     s.Name,
			"status":   s.Status,
			"progress": s.Progress,
		}
		if s.StartedAt != nil {
			entry["started_at"] = s.StartedAt.Format(time.RFC3339Nano)
		}
		if s.EndedAt != nil {
			entry["ended_at"] = s.EndedAt.Format(time.RFC3339Nano)
		}
		if s.Error != nil {
			entry["error"] = s.Error.Message
		}
		stages = append(stages, entry)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":     snap.Status,
		"progress":   snap.Progress,
		"stages":     stages,
		"message":    snap.Message,
		"created_at": snap.CreatedAt.Format(time.RFC3339Nano),
		"updated_at": snap.UpdatedAt.Format(time.RFC3339Nano),
	})
}

// Cancel implements DELETE /v1/jobs/{id}.
func (api *API) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	id := jobIDFromPath(r.URL.Path, "/v1/jobs/", "")
	if id == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "job id is required")
		return
	}

	if err := api.Orchestrator.Cancel(r.Context(), id); err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "not_found", "job not found")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal_error", "failed to cancel job")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "cancelled"})
}

// Result implements the Result interface (spec §6): GET /v1/jobs/{id}/result.
func (api *API) Result(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	id := jobIDFromPath(r.URL.Path, "/v1/jobs/", "/result")
	if id == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "job id is required")
		return
	}

	result, convErr, err := api.Orchestrator.Result(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, registry.ErrNotFound):
			writeError(w, r, http.StatusNotFound, "not_found", "job not found")
		case errors.Is(err, orchestrator.ErrNotReady):
			writeError(w, r, http.StatusConflict, "not_ready", "job has not finished yet")
		default:
			writeError(w, r, http.StatusInternalServerError, "internal_error", "failed to load result")
		}
		return
	}

	if convErr != nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"error_kind":  convErr.Kind,
			"message":     convErr.Message,
			"stage":       convErr.Stage,
			"suggestions": convErr.Suggestions,
			"diagnostics": convErr.CapturedStderr,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"html_path":   result.HTMLPath,
		"assets":      result.AssetPaths,
		"score":       result.QualityScore,
		"warnings":    result.Warnings,
		"diagnostics": result.StageDiagnostics,
	})
}

// Download implements the Download interface (spec §6): GET
// /v1/jobs/{id}/download. The output directory is zipped on demand;
// nothing is cached between requests.
func (api *API) Download(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	id := jobIDFromPath(r.URL.Path, "/v1/jobs/", "/download")
	if id == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "job id is required")
		return
	}

	result, _, err := api.Orchestrator.Result(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, registry.ErrNotFound):
			writeError(w, r, http.StatusNotFound, "not_found", "job not found")
		case errors.Is(err, orchestrator.ErrNotReady):
			writeError(w, r, http.StatusConflict, "not_ready", "job has not finished yet")
		default:
			writeError(w, r, http.StatusInternalServerError, "internal_error", "failed to load result")
		}
		return
	}
	if result == nil {
		writeError(w, r, http.StatusNotFound, "not_found", "job did not complete successfully")
		return
	}

	outputDir := filepath.Dir(result.HTMLPath)

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+id+`.zip"`)

	zw := zip.NewWriter(w)
	defer zw.Close()

	_ = filepath.Walk(outputDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(outputDir, path)
		if err != nil {
			return nil
		}
		entry, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return nil
		}
		f, err := os.Open(path)
		if err != nil {
			return nil
		}
		defer f.Close()
		_, _ = io.Copy(entry, f)
		return nil
	})
}
