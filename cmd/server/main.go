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
	"golang.org/x/sync/errgroup"

	"github.com/voxflow-ai/voice-agent/internal/asr"
	"github.com/voxflow-ai/voice-agent/internal/config"
	"github.com/voxflow-ai/voice-agent/internal/gateway"
	"github.com/voxflow-ai/voice-agent/internal/genai"
	"github.com/voxflow-ai/voice-agent/internal/observability"
	"github.com/voxflow-ai/voice-agent/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("port", cfg.Port).
		Str("asr_model", cfg.DeepgramModel).
		Str("voice_model", cfg.GLMModel).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("Voice agent starting")

	transcriber := asr.NewDeepgramClient(cfg)
	generator := genai.NewGLMClient(cfg)
	registry := session.NewRegistry(gateway.NewSessionFactory(cfg))
	handler := gateway.NewHandler(cfg, registry, transcriber, generator)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws/voice", handler.HandleVoiceWS())
	mux.HandleFunc("/health", observability.HealthCheckHandler())
	mux.HandleFunc("/ready", observability.ReadinessHandler(map[string]observability.HealthCheckFunc{
		"deepgram": transcriber.HealthCheck,
		"glm":      generator.HealthCheck,
	}))
	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info().Msg("Prometheus metrics enabled at /metrics")
	}

	server := &http.Server{
		Addr:        fmt.Sprintf(":%s", cfg.Port),
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info().
			Str("port", cfg.Port).
			Str("endpoint", fmt.Sprintf("ws://localhost:%s/ws/voice", cfg.Port)).
			Msg("Server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		logger.Info().Msg("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}

		registry.CloseAll()
		transcriber.Close()
		generator.Close()
		return nil
	})

	if err := group.Wait(); err != nil {
		logger.Fatal().Err(err).Msg("Server terminated with error")
	}
	logger.Info().Msg("Server exited gracefully")
}
