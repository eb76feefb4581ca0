package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ainotetaker/transcription-gateway/internal/config"
	"github.com/ainotetaker/transcription-gateway/internal/gateway"
	"github.com/ainotetaker/transcription-gateway/internal/observability"
	"github.com/ainotetaker/transcription-gateway/internal/stt"
	"github.com/ainotetaker/transcription-gateway/internal/summary"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("port", cfg.Port).
		Str("deepgram_model", cfg.DeepgramModel).
		Bool("gemini_configured", cfg.GeminiConfigured()).
		Int("max_sessions", cfg.MaxSessions).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("Transcription Gateway Service starting")

	// Wire the collaborators
	dialer := stt.NewDeepgramDialer(cfg)
	summarizer := summary.NewGeminiClient(cfg)
	registry := gateway.NewRegistry(cfg.MaxSessions)
	wsHandler := gateway.NewHandler(cfg, dialer, summarizer, registry)

	mux := http.NewServeMux()

	// Transcription message bus
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	// On-demand summarization
	mux.Handle("/api/summarize", gateway.NewSummarizeHandler(summarizer))

	// Health check endpoint
	mux.HandleFunc("/api/health", observability.HealthCheckHandler(
		func() bool { return cfg.DeepgramAPIKey != "" },
		cfg.GeminiConfigured,
		registry.Active,
	))

	// Readiness endpoint. Configuration-level checks only: no upstream calls,
	// each live session validates its own link when it opens.
	mux.HandleFunc("/ready", observability.ReadinessHandler(map[string]observability.HealthCheckFunc{
		"deepgram": func(ctx context.Context) (bool, error) {
			if cfg.DeepgramAPIKey == "" {
				return false, fmt.Errorf("DEEPGRAM_API_KEY not configured")
			}
			return true, nil
		},
		"gemini": func(ctx context.Context) (bool, error) {
			// Optional collaborator: absent key degrades summaries, not readiness
			return true, nil
		},
	}))

	// Metrics endpoint (Prometheus)
	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info().Msg("Prometheus metrics enabled at /metrics")
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("endpoint", fmt.Sprintf("ws://localhost:%s/ws", cfg.Port)).
			Msg("Server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")

	// Ask live sessions to settle before closing the listener
	registry.StopAll()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server exited gracefully")
}
