package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/docpipeline/docpipeline/internal/model"
)

// ChunkRepo stores the chunker's output. Chunks are regenerable, so a
// re-run of the chunking stage replaces a document's chunks wholesale
// rather than trying to diff them.
type ChunkRepo struct {
	pool *pgxpool.Pool
}

// NewChunkRepo creates a ChunkRepo.
func NewChunkRepo(pool *pgxpool.Pool) *ChunkRepo {
	return &ChunkRepo{pool: pool}
}

// ReplaceAll deletes any existing chunks for documentID and inserts chunks
// in a single transaction, so a crash mid-write never leaves a document
// with a partial chunk set.
func (r *ChunkRepo) ReplaceAll(ctx context.Context, documentID int64, chunks []model.Chunk) ([]model.Chunk, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("repository.ChunkRepo.ReplaceAll: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID); err != nil {
		return nil, fmt.Errorf("repository.ChunkRepo.ReplaceAll: delete: %w", err)
	}

	batch := &pgx.Batch{}
	for _, c := range chunks {
		batch.Queue(`
			INSERT INTO chunks (document_id, sequence, text, token_count)
			VALUES ($1, $2, $3, $4)
			RETURNING id, created_at`,
			documentID, c.Sequence, c.Text, c.TokenCount,
		)
	}

	br := tx.SendBatch(ctx, batch)
	out := make([]model.Chunk, len(chunks))
	for i, c := range chunks {
		c.DocumentID = documentID
		if err := br.QueryRow().Scan(&c.ID, &c.CreatedAt); err != nil {
			br.Close()
			return nil, fmt.Errorf("repository.ChunkRepo.ReplaceAll: insert chunk %d: %w", i, err)
		}
		out[i] = c
	}
	if err := br.Close(); err != nil {
		return nil, fmt.Errorf("repository.ChunkRepo.ReplaceAll: close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("repository.ChunkRepo.ReplaceAll: commit: %w", err)
	}
	return out, nil
}

// ListByDocument returns a document's chunks ordered by sequence.
func (r *ChunkRepo) ListByDocument(ctx context.Context, documentID int64) ([]model.Chunk, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, document_id, sequence, text, token_count, created_at
		FROM chunks WHERE document_id = $1 ORDER BY sequence ASC`,
		documentID,
	)
	if err != nil {
		return nil, fmt.Errorf("repository.ChunkRepo.ListByDocument: %w", err)
	}
	defer rows.Close()

	var chunks []model.Chunk
	for rows.Next() {
		var c model.Chunk
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Sequence, &c.Text, &c.TokenCount, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("repository.ChunkRepo.ListByDocument: scan: %w", err)
		}
		chunks = append(chunks, c)
	}
	return chunks, nil
}
