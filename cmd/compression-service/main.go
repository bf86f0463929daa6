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
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/shrinkray/compression-backend/internal/compression/engine"
	"github.com/shrinkray/compression-backend/internal/compression/events"
	"github.com/shrinkray/compression-backend/internal/compression/handler"
	"github.com/shrinkray/compression-backend/internal/compression/repository"
	"github.com/shrinkray/compression-backend/internal/compression/transformer"
	"github.com/shrinkray/compression-backend/internal/ocr"
	"github.com/shrinkray/compression-backend/internal/ocr/boundary"
	"github.com/shrinkray/compression-backend/internal/ocr/orchestrator"
	"github.com/shrinkray/compression-backend/internal/ocr/staging"
	"github.com/shrinkray/compression-backend/pkg/auth"
	"github.com/shrinkray/compression-backend/pkg/config"
	"github.com/shrinkray/compression-backend/pkg/database"
	"github.com/shrinkray/compression-backend/pkg/httputil"
	"github.com/shrinkray/compression-backend/pkg/logger"
	"github.com/shrinkray/compression-backend/pkg/messaging"
)

func main() {
	cfg, err := config.LoadWithValidation("compression-service")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New("compression-service", cfg.Server.Environment)
	log.Info().Msg("starting Compression Service")

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer rmq.Close()

	publisher, err := events.NewCompressionEventPublisher(rmq, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}

	historyRepo := repository.NewHistoryRepository(db)

	registry := transformer.NewRegistry(
		transformer.NewPDFTransformer(log),
		transformer.NewImageTransformer(log),
		transformer.NewTextTransformer(log),
		transformer.NewPassthrough(),
	)

	pipeline := buildPipeline(cfg, publisher, log)

	jobs := engine.NewJobStore()
	defer jobs.Close()

	eng := engine.NewEngine(registry, jobs, pipeline, publisher, historyRepo, log)
	compressionHandler := handler.NewHandler(eng, historyRepo, cfg.Compression.MaxUploadSize, log)

	verifier := auth.NewVerifier(&cfg.JWT)

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"status":   "healthy",
			"service":  "compression-service",
			"database": db.Health(r.Context()),
			"rabbitmq": rmq.Health(),
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httputil.Auth(verifier))
		compressionHandler.Routes(r)
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

// buildPipeline wires the merge+OCR stage. Merging always works; without
// OCR credentials, analysis requests fail with a configuration error. In
// development an in-memory staging store stands in for the real one.
func buildPipeline(cfg *config.Config, publisher *events.CompressionEventPublisher, log *logger.Logger) *ocr.Pipeline {
	if !cfg.OCR.Configured() {
		log.Warn().Msg("ocr boundary not configured, document analysis disabled")
		return ocr.NewPipeline(nil, publisher, log)
	}

	ocrClient, err := boundary.NewClient(cfg.OCR, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create ocr client")
	}

	var store staging.Store
	if cfg.Staging.Configured() {
		client, err := staging.NewClient(cfg.Staging, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create staging client")
		}
		store = client
	} else {
		if cfg.Server.Environment != config.EnvDevelopment {
			log.Fatal().Msg("staging storage must be configured outside development")
		}
		log.Warn().Msg("staging storage not configured, using in-memory store")
		store = staging.NewMemory()
	}

	orch := orchestrator.NewOrchestrator(store, ocrClient, cfg.Staging.SignedURLTTL, log)
	return ocr.NewPipeline(orch, publisher, log)
}
