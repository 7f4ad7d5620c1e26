package httpserver

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/iago/latex-orchestrator/internal/config"
	"github.com/iago/latex-orchestrator/internal/httpserver/handlers"
	"github.com/iago/latex-orchestrator/internal/orchestrator"
	"github.com/iago/latex-orchestrator/internal/process"
	"github.com/iago/latex-orchestrator/internal/registry"
)

func testRouter(t *testing.T) http.Handler {
	t.Helper()
	root := t.TempDir()
	cfg := config.Config{
		MaxConcurrent: 5,
		UploadRoot:    filepath.Join(root, "uploads"),
		OutputRoot:    filepath.Join(root, "outputs"),
		CompilerPath:  "/bin/true",
		ConverterPath: "/bin/true",
	}
	o := orchestrator.New(cfg, registry.NewMemoryRegistry(), process.NewRunner(1000, 1000, "/bin/true"), nil)
	api := handlers.NewAPI(o)
	return NewRouter(RouterDependencies{API: api, RateLimitRPS: 1000, RateLimitBurst: 1000})
}

func multipartArchive(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("archive", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, w.FormDataContentType()
}

func TestHealthEndpoint(t *testing.T) {
	router := testRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestSubmitThenStatusThenCancel(t *testing.T) {
	router := testRouter(t)

	body, contentType := multipartArchive(t, "paper.zip", "not a real zip")
	req := httptest.NewRequest(http.MethodPost, "/v1/jobs", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}

	var submitResp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &submitResp); err != nil {
		t.Fatalf("decode submit response: %v", err)
	}
	id, _ := submitResp["job_id"].(string)
	if id == "" {
		t.Fatal("expected job_id in submit response")
	}

	statusReq := httptest.NewRequest(http.MethodGet, "/v1/jobs/"+id, nil)
	statusRec := httptest.NewRecorder()
	router.ServeHTTP(statusRec, statusReq)
	if statusRec.Code != http.StatusOK {
		t.Fatalf("expected 200 on status, got %d: %s", statusRec.Code, statusRec.Body.String())
	}

	cancelReq := httptest.NewRequest(http.MethodDelete, "/v1/jobs/"+id, nil)
	cancelRec := httptest.NewRecorder()
	router.ServeHTTP(cancelRec, cancelReq)
	if cancelRec.Code != http.StatusOK {
		t.Fatalf("expected 200 on cancel, got %d: %s", cancelRec.Code, cancelRec.Body.String())
	}
}

func TestSubmitRejectsMissingArchivePart(t *testing.T) {
	router := testRouter(t)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	_ = w.WriteField("options", `{"skip_images":true}`)
	_ = w.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/jobs", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestStatusOnUnknownJobReturnsNotFound(t *testing.T) {
	router := testRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/jobs/does-not-exist", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
