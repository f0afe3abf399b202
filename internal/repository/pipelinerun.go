package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/docpipeline/docpipeline/internal/model"
)

// PipelineRunRepo is the durable state machine the engine reasons about.
type PipelineRunRepo struct {
	pool *pgxpool.Pool
}

// NewPipelineRunRepo creates a PipelineRunRepo.
func NewPipelineRunRepo(pool *pgxpool.Pool) *PipelineRunRepo {
	return &PipelineRunRepo{pool: pool}
}

// FindCompleted returns the completed run for (documentID, stage), or
// ErrNotFound if the stage has not completed for this document. The
// engine's idempotency check is exactly this lookup.
func (r *PipelineRunRepo) FindCompleted(ctx context.Context, documentID int64, stage string) (*model.PipelineRun, error) {
	run := &model.PipelineRun{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, document_id, stage, status, attempt, error_type, error_message, started_at, finished_at, correlation_id
		FROM pipeline_runs
		WHERE document_id = $1 AND stage = $2 AND status = 'completed'`,
		documentID, stage,
	).Scan(&run.ID, &run.DocumentID, &run.Stage, &run.Status, &run.Attempt, &run.ErrorType, &run.ErrorMessage, &run.StartedAt, &run.FinishedAt, &run.CorrelationID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("repository.FindCompleted: %w", err)
	}
	return run, nil
}

// NextAttempt returns the attempt number to use for the next run of
// (documentID, stage): one more than the number of runs already recorded.
func (r *PipelineRunRepo) NextAttempt(ctx context.Context, documentID int64, stage string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT count(*) FROM pipeline_runs WHERE document_id = $1 AND stage = $2`,
		documentID, stage,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("repository.NextAttempt: %w", err)
	}
	return count + 1, nil
}

// CreateRunning records the start of a new run attempt and returns its id.
func (r *PipelineRunRepo) CreateRunning(ctx context.Context, documentID int64, stage string, attempt int, correlationID string) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO pipeline_runs (document_id, stage, status, attempt, started_at, correlation_id)
		VALUES ($1, $2, 'running', $3, now(), $4)
		RETURNING id`,
		documentID, stage, attempt, correlationID,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("repository.CreateRunning: %w", err)
	}
	return id, nil
}

// MarkCompleted finalizes a run as completed. If a concurrent writer has
// already completed the same (document_id, stage) pair, the partial
// unique index on the table makes this a constraint violation rather than
// a silent duplicate.
func (r *PipelineRunRepo) MarkCompleted(ctx context.Context, runID int64) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE pipeline_runs SET status = 'completed', finished_at = now() WHERE id = $1`,
		runID,
	)
	if err != nil {
		return fmt.Errorf("repository.MarkCompleted: %w", err)
	}
	return nil
}

// MarkFailed finalizes a run as failed, recording the error's taxonomy
// kind and a truncated message.
func (r *PipelineRunRepo) MarkFailed(ctx context.Context, runID int64, errorKind, errorMessage string) error {
	if len(errorMessage) > model.MaxErrorMessageLen {
		errorMessage = errorMessage[:model.MaxErrorMessageLen]
	}
	_, err := r.pool.Exec(ctx, `
		UPDATE pipeline_runs SET status = 'failed', finished_at = now(), error_type = $1, error_message = $2 WHERE id = $3`,
		errorKind, errorMessage, runID,
	)
	if err != nil {
		return fmt.Errorf("repository.MarkFailed: %w", err)
	}
	return nil
}

// ListByDocument returns every run recorded for a document, ordered by
// start time, for status reporting and audit.
func (r *PipelineRunRepo) ListByDocument(ctx context.Context, documentID int64) ([]model.PipelineRun, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, document_id, stage, status, attempt, error_type, error_message, started_at, finished_at, correlation_id
		FROM pipeline_runs WHERE document_id = $1 ORDER BY started_at ASC`,
		documentID,
	)
	if err != nil {
		return nil, fmt.Errorf("repository.ListByDocument: %w", err)
	}
	defer rows.Close()

	var runs []model.PipelineRun
	for rows.Next() {
		var run model.PipelineRun
		if err := rows.Scan(&run.ID, &run.DocumentID, &run.Stage, &run.Status, &run.Attempt, &run.ErrorType, &run.ErrorMessage, &run.StartedAt, &run.FinishedAt, &run.CorrelationID); err != nil {
			return nil, fmt.Errorf("repository.ListByDocument: scan: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, nil
}
