package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/docpipeline/docpipeline/internal/model"
)

// ExtractionRepo stores the model's per-chunk structured-extraction
// results and their validation children.
type ExtractionRepo struct {
	pool *pgxpool.Pool
}

// NewExtractionRepo creates an ExtractionRepo.
func NewExtractionRepo(pool *pgxpool.Pool) *ExtractionRepo {
	return &ExtractionRepo{pool: pool}
}

// Create inserts one extraction row and returns its id.
func (r *ExtractionRepo) Create(ctx context.Context, e *model.Extraction) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO extractions (
			chunk_id, schema_version, model, json_result, is_valid,
			latency_ms, tokens_in, tokens_out, cost_usd, prompt_hash, raw_response
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`,
		e.ChunkID, e.SchemaVersion, e.Model, e.JSONResult, e.IsValid,
		e.LatencyMs, e.TokensIn, e.TokensOut, e.CostUSD, e.PromptHash, e.RawResponse,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("repository.ExtractionRepo.Create: %w", err)
	}
	return id, nil
}

// GetByID fetches a single extraction by id.
func (r *ExtractionRepo) GetByID(ctx context.Context, id int64) (*model.Extraction, error) {
	e := &model.Extraction{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, chunk_id, schema_version, model, json_result, is_valid,
			latency_ms, tokens_in, tokens_out, cost_usd, prompt_hash, raw_response, created_at
		FROM extractions WHERE id = $1`, id,
	).Scan(&e.ID, &e.ChunkID, &e.SchemaVersion, &e.Model, &e.JSONResult, &e.IsValid,
		&e.LatencyMs, &e.TokensIn, &e.TokensOut, &e.CostUSD, &e.PromptHash, &e.RawResponse, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("repository.ExtractionRepo.GetByID: %w", err)
	}
	return e, nil
}

// ListByDocument returns every extraction across a document's chunks,
// ordered by chunk sequence, for the status/results API.
func (r *ExtractionRepo) ListByDocument(ctx context.Context, documentID int64) ([]model.Extraction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT e.id, e.chunk_id, e.schema_version, e.model, e.json_result, e.is_valid,
			e.latency_ms, e.tokens_in, e.tokens_out, e.cost_usd, e.prompt_hash, e.raw_response, e.created_at
		FROM extractions e
		JOIN chunks c ON c.id = e.chunk_id
		WHERE c.document_id = $1
		ORDER BY c.sequence ASC`,
		documentID,
	)
	if err != nil {
		return nil, fmt.Errorf("repository.ExtractionRepo.ListByDocument: %w", err)
	}
	defer rows.Close()

	var out []model.Extraction
	for rows.Next() {
		var e model.Extraction
		if err := rows.Scan(&e.ID, &e.ChunkID, &e.SchemaVersion, &e.Model, &e.JSONResult, &e.IsValid,
			&e.LatencyMs, &e.TokensIn, &e.TokensOut, &e.CostUSD, &e.PromptHash, &e.RawResponse, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("repository.ExtractionRepo.ListByDocument: scan: %w", err)
		}
		out = append(out, e)
	}
	return out, nil
}

// MarkInvalid flips is_valid to false for an extraction. The validation
// stage records its verdict through SetValid instead.
func (r *ExtractionRepo) MarkInvalid(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `UPDATE extractions SET is_valid = false WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("repository.ExtractionRepo.MarkInvalid: %w", err)
	}
	return nil
}

// SetValid records the validation stage's verdict for an extraction.
func (r *ExtractionRepo) SetValid(ctx context.Context, id int64, isValid bool) error {
	_, err := r.pool.Exec(ctx, `UPDATE extractions SET is_valid = $2 WHERE id = $1`, id, isValid)
	if err != nil {
		return fmt.Errorf("repository.ExtractionRepo.SetValid: %w", err)
	}
	return nil
}

// DeleteByDocument removes every extraction belonging to a document's
// chunks, along with their prompts and validation errors, so a re-run of
// the structured-extraction stage starts from a clean slate instead of
// accumulating duplicate rows.
func (r *ExtractionRepo) DeleteByDocument(ctx context.Context, documentID int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repository.ExtractionRepo.DeleteByDocument: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	const extractionIDs = `SELECT e.id FROM extractions e JOIN chunks c ON c.id = e.chunk_id WHERE c.document_id = $1`

	if _, err := tx.Exec(ctx, `DELETE FROM validation_errors WHERE extraction_id IN (`+extractionIDs+`)`, documentID); err != nil {
		return fmt.Errorf("repository.ExtractionRepo.DeleteByDocument: validation_errors: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM prompts WHERE extraction_id IN (`+extractionIDs+`)`, documentID); err != nil {
		return fmt.Errorf("repository.ExtractionRepo.DeleteByDocument: prompts: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM extractions WHERE id IN (`+extractionIDs+`)`, documentID); err != nil {
		return fmt.Errorf("repository.ExtractionRepo.DeleteByDocument: extractions: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("repository.ExtractionRepo.DeleteByDocument: commit: %w", err)
	}
	return nil
}
