package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/docpipeline/docpipeline/internal/model"
)

// ValidationErrorRepo stores the schema violations found for an
// extraction.
type ValidationErrorRepo struct {
	pool *pgxpool.Pool
}

// NewValidationErrorRepo creates a ValidationErrorRepo.
func NewValidationErrorRepo(pool *pgxpool.Pool) *ValidationErrorRepo {
	return &ValidationErrorRepo{pool: pool}
}

// BulkInsert records every violation found for one extraction.
func (r *ValidationErrorRepo) BulkInsert(ctx context.Context, extractionID int64, violations []model.ValidationError) error {
	if len(violations) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, v := range violations {
		batch.Queue(`
			INSERT INTO validation_errors (extraction_id, json_path, message)
			VALUES ($1, $2, $3)`,
			extractionID, v.JSONPath, v.Message,
		)
	}
	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()
	for i := range violations {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("repository.ValidationErrorRepo.BulkInsert: violation %d: %w", i, err)
		}
	}
	return nil
}

// DeleteByExtraction removes every violation recorded for an extraction,
// so the validation stage can re-validate an extraction without
// accumulating stale rows from a prior attempt.
func (r *ValidationErrorRepo) DeleteByExtraction(ctx context.Context, extractionID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM validation_errors WHERE extraction_id = $1`, extractionID)
	if err != nil {
		return fmt.Errorf("repository.ValidationErrorRepo.DeleteByExtraction: %w", err)
	}
	return nil
}

// ListByExtraction returns every violation recorded for an extraction.
func (r *ValidationErrorRepo) ListByExtraction(ctx context.Context, extractionID int64) ([]model.ValidationError, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, extraction_id, json_path, message, created_at
		FROM validation_errors WHERE extraction_id = $1`, extractionID,
	)
	if err != nil {
		return nil, fmt.Errorf("repository.ValidationErrorRepo.ListByExtraction: %w", err)
	}
	defer rows.Close()

	var out []model.ValidationError
	for rows.Next() {
		var v model.ValidationError
		if err := rows.Scan(&v.ID, &v.ExtractionID, &v.JSONPath, &v.Message, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("repository.ValidationErrorRepo.ListByExtraction: scan: %w", err)
		}
		out = append(out, v)
	}
	return out, nil
}
