package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/docpipeline/docpipeline/internal/cache"
	"github.com/docpipeline/docpipeline/internal/config"
	"github.com/docpipeline/docpipeline/internal/handler"
	appmiddleware "github.com/docpipeline/docpipeline/internal/middleware"
	"github.com/docpipeline/docpipeline/internal/repository"
	"github.com/docpipeline/docpipeline/internal/router"
	"github.com/docpipeline/docpipeline/internal/service"
	"github.com/docpipeline/docpipeline/internal/service/stages"
)

const Version = "0.1.0"

func run() error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("cmd/server: %w", err)
	}

	pool, err := repository.NewPool(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConns)
	if err != nil {
		return fmt.Errorf("cmd/server: %w", err)
	}
	defer pool.Close()

	documents := repository.NewDocumentRepo(pool)
	rawContent := repository.NewRawContentRepo(pool)
	pipelineRuns := repository.NewPipelineRunRepo(pool)
	chunks := repository.NewChunkRepo(pool)
	embeddings := repository.NewEmbeddingRepo(pool)
	extractions := repository.NewExtractionRepo(pool)
	prompts := repository.NewPromptRepo(pool)
	validationErrors := repository.NewValidationErrorRepo(pool)
	metrics := repository.NewMetricRepo(pool)
	auditLog := repository.NewAuditLogRepo(pool)

	var processingLock service.ProcessingLock
	var embeddingCache service.EmbeddingCache
	if cfg.RedisURL != "" {
		redisClient, err := cache.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("cmd/server: %w", err)
		}
		defer redisClient.Close()
		processingLock = redisClient
		embeddingCache = redisClient
	}

	extractor := service.NewTextExtractor()
	chunker := service.NewChunkerService(cfg.ChunkSize, cfg.ChunkOverlap, cfg.ChunkMinSize)
	embedder := service.NewEmbedderService(cfg.EmbeddingBaseURL, cfg.EmbeddingAPIKey, cfg.EmbeddingModel,
		cfg.EmbeddingDimensions, cfg.EmbeddingTimeout, embeddingCache, cfg.RedisCacheTTL)
	llmClient := service.NewLLMClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel, cfg.LLMTimeout)
	schemaRegistry := service.NewSchemaRegistry(cfg.SchemaRegistryPath)
	schemaValidator := service.NewSchemaValidator()

	stageList := []service.Stage{
		stages.NewIngestStage(documents, rawContent),
		stages.NewTextExtractionStage(documents, rawContent, extractor),
		stages.NewLayoutNormalizationStage(documents, rawContent),
		stages.NewChunkingStage(documents, rawContent, chunks, chunker),
		stages.NewEmbeddingStage(documents, chunks, embeddings, embedder, cfg.EmbeddingModel),
		stages.NewStructuredExtractionStage(documents, chunks, extractions, prompts, schemaRegistry, llmClient,
			stages.StructuredExtractionConfig{
				ModelName:        cfg.LLMModel,
				Temperature:      cfg.LLMTemperature,
				MaxTokens:        cfg.LLMMaxTokens,
				MaxConcurrent:    cfg.PipelineMaxConcurrentChunks,
				CostPerInput:     cfg.CostPer1KInputTokens,
				CostPerOutput:    cfg.CostPer1KOutputTokens,
				PersistPrompts:   cfg.StoragePersistPrompts,
				PersistResponses: cfg.StoragePersistResponses,
			}),
		stages.NewValidationStage(documents, extractions, validationErrors, schemaRegistry, schemaValidator),
		stages.NewPersistenceStage(documents, chunks, extractions),
		stages.NewMetricsAndAuditStage(documents, metrics, auditLog, cfg.RedactFields),
	}

	reg := prometheus.NewRegistry()
	appMetrics := appmiddleware.NewMetrics(reg)

	engine := service.NewPipelineEngine(stageList, pipelineRuns, metrics, documents, service.EngineConfig{
		MaxAttempts:  cfg.PipelineMaxAttempts,
		BackoffBase:  cfg.PipelineRetryBackoffBase,
		BackoffMax:   cfg.PipelineRetryBackoffMax,
		Jitter:       cfg.PipelineRetryJitter,
		StageTimeout: cfg.PipelineStageTimeout,
	}, appMetrics, processingLock, cfg.RedisLockTTL)

	deps := &handler.Dependencies{
		Config:           cfg,
		Documents:        documents,
		RawContent:       rawContent,
		PipelineRuns:     pipelineRuns,
		Chunks:           chunks,
		Extractions:      extractions,
		ValidationErrors: validationErrors,
		Metrics:          metrics,
		Engine:           engine,
	}

	mux := router.New(deps, cfg, appMetrics, reg)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("docpipeline starting", "version", Version, "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("received signal, shutting down gracefully", "signal", sig.String())
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
