package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/docpipeline/docpipeline/internal/middleware"
	"github.com/docpipeline/docpipeline/internal/model"
	"github.com/docpipeline/docpipeline/internal/pipelineerr"
	"github.com/docpipeline/docpipeline/internal/repository"
)

// Stage is one unit of work in the fixed pipeline order. A stage knows
// its own storage contract against document_id; the engine is opaque to
// it and only reasons about success/failure and classified errors.
type Stage interface {
	Name() string
	Run(ctx context.Context, documentID int64) error
}

// RunRepository is the subset of repository.PipelineRunRepo the engine
// depends on, so tests can substitute an in-memory fake.
type RunRepository interface {
	FindCompleted(ctx context.Context, documentID int64, stage string) (*model.PipelineRun, error)
	NextAttempt(ctx context.Context, documentID int64, stage string) (int, error)
	CreateRunning(ctx context.Context, documentID int64, stage string, attempt int, correlationID string) (int64, error)
	MarkCompleted(ctx context.Context, runID int64) error
	MarkFailed(ctx context.Context, runID int64, errorKind, errorMessage string) error
}

// MetricRepository is the subset of repository.MetricRepo the engine uses
// to record one sample per run attempt.
type MetricRepository interface {
	Create(ctx context.Context, m *model.Metric) error
}

// DocumentStatusRepository lets the engine advance Document.status; set
// only at the very end of a successful run, per the engine's "final
// write is authoritative" contract (stage-local status writes made by
// individual stages are advisory, see DESIGN.md).
type DocumentStatusRepository interface {
	UpdateStatus(ctx context.Context, id int64, status model.DocumentStatus) error
}

// ProcessingLock guards against two workers running the same document_id
// concurrently. A Redis-backed implementation (internal/cache.Client)
// lets this hold across processes; an engine built with a nil lock, or
// whose lock returns an error, falls back to an in-process sync.Mutex map.
type ProcessingLock interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key string) error
}

// EngineConfig carries the retry/backoff and timeout policy read from
// config.Config.
type EngineConfig struct {
	MaxAttempts  int
	BackoffBase  float64
	BackoffMax   time.Duration
	Jitter       bool
	StageTimeout time.Duration
}

// PipelineEngine drives a document through a fixed, ordered stage list,
// persisting one PipelineRun per attempt so a crashed process resuming
// the same document_id converges on the same result: "completed" rows
// are the only skip signal the engine trusts.
type PipelineEngine struct {
	stages  []Stage
	runs    RunRepository
	metrics MetricRepository
	docs    DocumentStatusRepository
	cfg     EngineConfig

	appMetrics *middleware.Metrics
	lock       ProcessingLock
	lockTTL    time.Duration

	localMu         sync.Mutex
	localProcessing map[int64]bool

	sleep func(ctx context.Context, d time.Duration) error
}

// NewPipelineEngine builds a PipelineEngine over the fixed stage order.
// appMetrics and lock may be nil.
func NewPipelineEngine(stages []Stage, runs RunRepository, metrics MetricRepository, docs DocumentStatusRepository, cfg EngineConfig, appMetrics *middleware.Metrics, lock ProcessingLock, lockTTL time.Duration) *PipelineEngine {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 4
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 2.0
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = 60 * time.Second
	}
	return &PipelineEngine{
		stages:          stages,
		runs:            runs,
		metrics:         metrics,
		docs:            docs,
		cfg:             cfg,
		appMetrics:      appMetrics,
		lock:            lock,
		lockTTL:         lockTTL,
		localProcessing: make(map[int64]bool),
		sleep:           sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Run drives documentID through every stage in order, skipping stages
// that already have a completed PipelineRun, and sets document.status to
// completed once every stage has succeeded or been skipped.
func (e *PipelineEngine) Run(ctx context.Context, documentID int64, correlationID string) error {
	if !e.acquireGuard(ctx, documentID) {
		return fmt.Errorf("pipeline.Run: document %d is already being processed", documentID)
	}
	defer e.releaseGuard(ctx, documentID)

	slog.Info("pipeline starting", "document_id", documentID, "correlation_id", correlationID)

	for _, stage := range e.stages {
		completed, err := e.runs.FindCompleted(ctx, documentID, stage.Name())
		if err == nil {
			slog.Info("pipeline stage skipped", "document_id", documentID, "stage", stage.Name(), "attempt", completed.Attempt)
			continue
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("pipeline.Run: check completed run for %s: %w", stage.Name(), err)
		}

		if err := e.runWithRetry(ctx, documentID, correlationID, stage); err != nil {
			slog.Error("pipeline aborted", "document_id", documentID, "stage", stage.Name(), "error", err)
			return fmt.Errorf("pipeline.Run: stage %s: %w", stage.Name(), err)
		}
	}

	if err := e.docs.UpdateStatus(ctx, documentID, model.StatusCompleted); err != nil {
		return fmt.Errorf("pipeline.Run: set completed: %w", err)
	}
	slog.Info("pipeline completed", "document_id", documentID)
	return nil
}

// runWithRetry executes one stage through the engine's retry/backoff
// policy. Each attempt is its own PipelineRun row; the run table, not
// any in-memory counter, is the source of truth for the attempt number,
// so a retry loop that resumes after a crash still numbers attempts
// correctly.
func (e *PipelineEngine) runWithRetry(ctx context.Context, documentID int64, correlationID string, stage Stage) error {
	for attempt := 1; ; attempt++ {
		n, err := e.runs.NextAttempt(ctx, documentID, stage.Name())
		if err != nil {
			return fmt.Errorf("runWithRetry: next attempt: %w", err)
		}

		runID, err := e.runs.CreateRunning(ctx, documentID, stage.Name(), n, correlationID)
		if err != nil {
			return fmt.Errorf("runWithRetry: create run: %w", err)
		}

		stageCtx, cancel := context.WithTimeout(ctx, e.cfg.StageTimeout)
		start := time.Now()
		stageErr := stage.Run(stageCtx, documentID)
		latency := time.Since(start)
		timedOut := errors.Is(stageCtx.Err(), context.DeadlineExceeded)
		cancel()

		if stageErr == nil {
			if err := e.runs.MarkCompleted(ctx, runID); err != nil {
				return fmt.Errorf("runWithRetry: mark completed: %w", err)
			}
			e.recordMetric(ctx, runID, stage.Name(), latency)
			if e.appMetrics != nil {
				e.appMetrics.ObserveStage(stage.Name(), "success", latency.Seconds())
			}
			return nil
		}

		kind := pipelineerr.KindOf(stageErr)
		if timedOut || errors.Is(stageErr, context.DeadlineExceeded) {
			kind = pipelineerr.KindTransientExternal
		}
		if kind == "" {
			kind = pipelineerr.KindStorage
		}

		if err := e.runs.MarkFailed(ctx, runID, string(kind), stageErr.Error()); err != nil {
			slog.Error("pipeline failed to record run failure", "document_id", documentID, "stage", stage.Name(), "error", err)
		}
		e.recordMetric(ctx, runID, stage.Name(), latency)
		if e.appMetrics != nil {
			e.appMetrics.ObserveStage(stage.Name(), "failure", latency.Seconds())
			e.appMetrics.IncrementStageFailure(stage.Name(), string(kind))
		}

		slog.Warn("pipeline stage failed", "document_id", documentID, "stage", stage.Name(), "attempt", attempt, "error_type", kind, "error", stageErr)

		if !kind.Retryable() || attempt >= e.cfg.MaxAttempts {
			return stageErr
		}

		if e.appMetrics != nil {
			e.appMetrics.IncrementStageRetry(stage.Name())
		}

		delay := e.backoffDelay(attempt)
		slog.Info("pipeline stage retrying", "document_id", documentID, "stage", stage.Name(), "attempt", attempt, "delay_seconds", delay.Seconds())
		if err := e.sleep(ctx, delay); err != nil {
			return err
		}
	}
}

// backoffDelay computes min(backoff_base^(attempt-1), backoff_max),
// multiplied by a uniform [0.5, 1.5) jitter sample when enabled.
func (e *PipelineEngine) backoffDelay(attempt int) time.Duration {
	seconds := pow(e.cfg.BackoffBase, attempt-1)
	maxSeconds := e.cfg.BackoffMax.Seconds()
	if seconds > maxSeconds {
		seconds = maxSeconds
	}
	if e.cfg.Jitter {
		seconds *= 0.5 + rand.Float64()
	}
	return time.Duration(seconds * float64(time.Second))
}

func pow(base float64, exp int) float64 {
	result := 1.0
	for i := 0; i < exp; i++ {
		result *= base
	}
	return result
}

func (e *PipelineEngine) recordMetric(ctx context.Context, runID int64, stage string, latency time.Duration) {
	m := &model.Metric{RunID: runID, Stage: stage, LatencyMs: float64(latency.Milliseconds())}
	if err := e.metrics.Create(ctx, m); err != nil {
		slog.Error("pipeline failed to record metric", "run_id", runID, "stage", stage, "error", err)
	}
}

func (e *PipelineEngine) acquireGuard(ctx context.Context, documentID int64) bool {
	if e.lock != nil {
		ok, err := e.lock.AcquireLock(ctx, lockKey(documentID), e.lockTTL)
		if err != nil {
			slog.Error("pipeline lock acquire failed, falling back to in-process guard", "document_id", documentID, "error", err)
		} else {
			return ok
		}
	}

	e.localMu.Lock()
	defer e.localMu.Unlock()
	if e.localProcessing[documentID] {
		return false
	}
	e.localProcessing[documentID] = true
	return true
}

func (e *PipelineEngine) releaseGuard(ctx context.Context, documentID int64) {
	if e.lock != nil {
		if err := e.lock.ReleaseLock(ctx, lockKey(documentID)); err == nil {
			return
		}
	}
	e.localMu.Lock()
	delete(e.localProcessing, documentID)
	e.localMu.Unlock()
}

func lockKey(documentID int64) string {
	return fmt.Sprintf("docpipeline:document:%d", documentID)
}

// StageOrder is the fixed order spec'd for every document: ingest through
// metrics_and_audit. Callers building the stage registry should supply
// Stage implementations in exactly this order.
var StageOrder = []string{
	"ingest",
	"text_extraction",
	"layout_normalization",
	"chunking",
	"embedding",
	"structured_extraction",
	"validation",
	"persistence",
	"metrics_and_audit",
}
