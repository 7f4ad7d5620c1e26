package httpserver

import (
	"log"
	"net/http"
	"strings"

	"github.com/iago/latex-orchestrator/internal/httpserver/handlers"
	"github.com/iago/latex-orchestrator/internal/httpserver/middleware"
)

type RouterDependencies struct {
	API            *handlers.API
	Logger         *log.Logger
	RateLimitRPS   float64
	RateLimitBurst int
}

// NewRouter wires the Submit/Status/Cancel/Result/Download surface
// (spec §6) behind RequestID, Trace, and RateLimit middleware. Auth and
// CORS are dropped: this process has no principal to authenticate and
// no browser origin to scope against.
func NewRouter(deps RouterDependencies) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", deps.API.Health)
	mux.HandleFunc("/v1/jobs", deps.API.Submit)
	mux.HandleFunc("/v1/jobs/", dispatchJob(deps.API))

	handler := http.Handler(mux)
	handler = middleware.RateLimit(deps.RateLimitRPS, deps.RateLimitBurst)(handler)
	handler = middleware.Trace(deps.Logger)(handler)
	handler = middleware.RequestID(handler)

	return handler
}

// dispatchJob routes the shared /v1/jobs/{id}[/result|/download] prefix
// to the right handler by method and suffix, since net/http's
// ServeMux predates wildcard path segments in this module's Go version.
func dispatchJob(api *handlers.API) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/result"):
			api.Result(w, r)
		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/download"):
			api.Download(w, r)
		case r.Method == http.MethodDelete:
			api.Cancel(w, r)
		case r.Method == http.MethodGet:
			api.Status(w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	}
}
