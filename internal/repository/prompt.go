package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/docpipeline/docpipeline/internal/model"
)

// PromptRepo optionally stores the full prompt text sent for an
// extraction, gated by config.Config.StoragePersistPrompts.
type PromptRepo struct {
	pool *pgxpool.Pool
}

// NewPromptRepo creates a PromptRepo.
func NewPromptRepo(pool *pgxpool.Pool) *PromptRepo {
	return &PromptRepo{pool: pool}
}

// Create stores a prompt's text and hash for one extraction.
func (r *PromptRepo) Create(ctx context.Context, p *model.Prompt) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO prompts (extraction_id, prompt_text, prompt_hash)
		VALUES ($1, $2, $3)`,
		p.ExtractionID, p.PromptText, p.PromptHash,
	)
	if err != nil {
		return fmt.Errorf("repository.PromptRepo.Create: %w", err)
	}
	return nil
}

// GetByExtraction fetches the prompt stored for an extraction, if any.
func (r *PromptRepo) GetByExtraction(ctx context.Context, extractionID int64) (*model.Prompt, error) {
	p := &model.Prompt{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, extraction_id, prompt_text, prompt_hash, created_at
		FROM prompts WHERE extraction_id = $1`, extractionID,
	).Scan(&p.ID, &p.ExtractionID, &p.PromptText, &p.PromptHash, &p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("repository.PromptRepo.GetByExtraction: %w", err)
	}
	return p, nil
}
