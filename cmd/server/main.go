package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/crowdstack/ghextract/internal/api/rest"
	"github.com/crowdstack/ghextract/internal/audit"
	"github.com/crowdstack/ghextract/internal/jobs"
)

func main() {
	// Optional .env for local development
	_ = godotenv.Load()

	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		panic(fmt.Sprintf("failed to create logger: %v", err))
	}
	defer logger.Sync()

	// Get configuration from environment
	port := getEnv("PORT", "8000")
	outputDir := getEnv("OUTPUT_DIR", "output")
	auditPath := getEnv("AUDIT_LOG", "audit-log.jsonl")
	apiBaseURL := getEnv("GITHUB_API_URL", "")

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		logger.Fatal("failed to create output directory", zap.Error(err))
	}

	// Create audit logger
	auditLog := audit.NewLogger(auditPath, logger)

	// Create job registry
	factory := jobs.NewTaskFactory(apiBaseURL, logger)
	registry := jobs.NewRegistry(outputDir, factory, auditLog, logger)

	// Create REST API handler
	restHandler := rest.NewHandler(registry, auditLog, logger)

	// Setup REST API
	router := chi.NewRouter()
	router.Route("/api/v1", func(r chi.Router) {
		restHandler.RegisterRoutes(r)
	})
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// Start REST server
	addr := fmt.Sprintf(":%s", port)
	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		logger.Info("starting REST API server", zap.String("address", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start REST server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down")

	// Running jobs cannot be cancelled; give in-flight requests a grace
	// period and exit.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	server.Shutdown(shutdownCtx)

	logger.Info("shutdown complete")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
