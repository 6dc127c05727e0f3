package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/unalkalkan/narrated-video-pipeline/internal/api"
	"github.com/unalkalkan/narrated-video-pipeline/internal/config"
	"github.com/unalkalkan/narrated-video-pipeline/internal/health"
	"github.com/unalkalkan/narrated-video-pipeline/internal/pipeline"
	"github.com/unalkalkan/narrated-video-pipeline/internal/progressbus"
	"github.com/unalkalkan/narrated-video-pipeline/internal/provider"
	"github.com/unalkalkan/narrated-video-pipeline/internal/storage"
	"github.com/unalkalkan/narrated-video-pipeline/internal/task"
	"github.com/unalkalkan/narrated-video-pipeline/pkg/types"
)

const version = "0.1.0"

func main() {
	configPath := flag.String("config", "config/dev.example.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Printf("Starting narrated-video-pipeline server v%s", version)
	log.Printf("Configuration loaded from: %s", *configPath)

	storageAdapter, err := storage.NewAdapter(cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to create storage adapter: %v", err)
	}
	defer storageAdapter.Close()
	log.Printf("Storage adapter initialized: %s", cfg.Storage.Adapter)

	providerRegistry := provider.NewRegistry()
	if err := providerRegistry.InitializeProviders(cfg.Providers); err != nil {
		log.Fatalf("Failed to initialize providers: %v", err)
	}
	defer providerRegistry.Close()
	log.Printf("Providers initialized")

	mediaRoot := cfg.Storage.MediaRoot
	if mediaRoot == "" {
		mediaRoot = cfg.Storage.Local.BasePath
	}
	if err := os.MkdirAll(mediaRoot, 0o755); err != nil {
		log.Fatalf("Failed to create media root %s: %v", mediaRoot, err)
	}

	taskTTL := time.Duration(cfg.Pipeline.TaskTTLSec) * time.Second
	sweepInterval := time.Duration(cfg.Pipeline.SweepIntervalSec) * time.Second
	tasks := task.New(taskTTL, sweepInterval)
	defer tasks.Stop()

	bus := progressbus.New()

	orchestrator := pipeline.New(providerRegistry, tasks, bus, mediaRoot, storageAdapter,
		cfg.Parser, cfg.Renderer, cfg.Composer)

	healthHandler := health.NewHandler(version)

	healthHandler.Register("storage", func(ctx context.Context) (health.Status, error) {
		if _, err := storageAdapter.Exists(ctx, ".healthcheck"); err != nil {
			return health.StatusUnhealthy, err
		}
		return health.StatusHealthy, nil
	})

	healthHandler.Register("providers", func(ctx context.Context) (health.Status, error) {
		_, hasLLM := providerRegistry.FirstLLM()
		_, hasImage := providerRegistry.FirstImage()
		_, hasTTS := providerRegistry.FirstTTS()
		if !hasLLM || !hasImage || !hasTTS {
			return health.StatusDegraded, fmt.Errorf("not all provider kinds are registered")
		}
		return health.StatusHealthy, nil
	})

	healthHandler.Register("ffmpeg", func(ctx context.Context) (health.Status, error) {
		if _, err := exec.LookPath("ffmpeg"); err != nil {
			return health.StatusUnhealthy, err
		}
		if _, err := exec.LookPath("ffprobe"); err != nil {
			return health.StatusUnhealthy, err
		}
		return health.StatusHealthy, nil
	})

	mux := http.NewServeMux()

	mux.HandleFunc("/health/live", healthHandler.LivenessHandler())
	mux.HandleFunc("/health/ready", healthHandler.ReadinessHandler())
	mux.HandleFunc("/health", healthHandler.HealthHandler())

	mux.HandleFunc("/api/v1/info", infoHandler(version, cfg))

	novelHandler := api.NewNovelHandler(orchestrator, tasks, bus)
	api.Routes(mux, novelHandler)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		log.Printf("Server listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// infoHandler returns basic server information.
func infoHandler(version string, cfg *types.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"version":"%s","storage_adapter":"%s"}`, version, cfg.Storage.Adapter)
	}
}
