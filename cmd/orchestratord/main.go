package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iago/latex-orchestrator/internal/config"
	"github.com/iago/latex-orchestrator/internal/httpserver"
	"github.com/iago/latex-orchestrator/internal/httpserver/handlers"
	"github.com/iago/latex-orchestrator/internal/orchestrator"
	"github.com/iago/latex-orchestrator/internal/packages"
	"github.com/iago/latex-orchestrator/internal/process"
	"github.com/iago/latex-orchestrator/internal/registry"
)

func main() {
	logger := log.New(os.Stdout, "[orchestratord] ", log.LstdFlags|log.LUTC|log.Lmicroseconds)
	if err := config.LoadDotEnv(".env", ".env.local"); err != nil {
		logger.Printf("failed loading .env files: %v", err)
	}
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(cfg.UploadRoot, 0o755); err != nil {
		logger.Fatalf("creating upload root: %v", err)
	}
	if err := os.MkdirAll(cfg.OutputRoot, 0o755); err != nil {
		logger.Fatalf("creating output root: %v", err)
	}

	reg := registry.NewMemoryRegistry()
	runner := process.NewRunner(0, 0, cfg.CompilerPath, cfg.ConverterPath, cfg.VectorizerPath, cfg.PackageInstallerPath, cfg.RasterFallbackPath)

	availabilityCache, closeCache := packages.NewAvailabilityCache(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, 5*time.Minute, 1000)
	defer closeCache()
	if cfg.RedisAddr != "" {
		logger.Printf("package availability cache backed by redis at %s", cfg.RedisAddr)
	}

	orch := orchestrator.New(cfg, reg, runner, availabilityCache)

	sweeper := orchestrator.NewSweeper(
		orch,
		time.Duration(cfg.SweepIntervalSeconds)*time.Second,
		time.Duration(cfg.RetentionHours)*time.Hour,
	)
	go sweeper.Run(ctx)

	monitor := orchestrator.NewMonitor(orch, 30*time.Second)
	go monitor.Run(ctx)

	api := handlers.NewAPI(orch)
	handler := httpserver.NewRouter(httpserver.RouterDependencies{
		API:            api,
		Logger:         logger,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      0, // downloads can stream for as long as the zip takes to build
		IdleTimeout:       60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Printf("orchestratord listening on :%s", cfg.Port)
		errChan <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Printf("shutdown signal received")
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("server failed: %v", err)
		}
	}

	// spec §6 "Exit conditions": no new submissions, sweeper stops,
	// running jobs are cancelled, then a 30s drain before exit. The
	// sweeper and monitor stop with ctx. Active jobs are cancelled
	// first; server.Shutdown then closes the listener, so no further
	// Submit is admitted, and waits up to 30s for in-flight requests.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cancelActiveJobs(shutdownCtx, reg, orch, logger)

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	}
}

func cancelActiveJobs(ctx context.Context, reg *registry.MemoryRegistry, orch *orchestrator.Orchestrator, logger *log.Logger) {
	jobs, err := reg.List(ctx, registry.ListFilter{})
	if err != nil {
		logger.Printf("listing jobs during shutdown: %v", err)
		return
	}
	for _, job := range jobs {
		if job.Status.Terminal() {
			continue
		}
		if err := orch.Cancel(ctx, job.ID); err != nil {
			logger.Printf("cancelling job %s during shutdown: %v", job.ID, err)
		}
	}
}
